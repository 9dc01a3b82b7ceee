// Package testing provides test utilities and database setup for testing the ad serving engine
package testing

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/mizuchi/adserving/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB represents a test database instance
type TestDB struct {
	DB   *gorm.DB
	Name string
}

// SetupTestDB creates a new in-memory test database with a unique name and
// runs migrations. Each call gets an isolated database so tests can run in
// parallel.
func SetupTestDB() (*TestDB, error) {
	dbName := fmt.Sprintf("adserving_test_%d_%d", time.Now().Unix(), rand.Intn(10000))

	// cache=shared keeps the in-memory database alive across the pooled
	// connections gorm opens for the same DSN
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", dbName)

	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open test database %s: %w", dbName, err)
	}

	if err := testDB.AutoMigrate(&models.CreativeAd{}, &models.AdEvent{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations on test database %s: %w", dbName, err)
	}

	return &TestDB{
		DB:   testDB,
		Name: dbName,
	}, nil
}

// TeardownTestDB closes the test database; an in-memory database vanishes
// with its last connection
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB == nil {
		return nil
	}

	sqlDB, err := tdb.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ClearAllTables removes all data from tables while preserving structure
func (tdb *TestDB) ClearAllTables() error {
	tables := []string{
		"ad_events",
		"creative_ads",
	}

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}

	return nil
}

// TestWithDB is a helper function that sets up a test database, runs the test function, and cleans up
func TestWithDB(testFunc func(*TestDB) error) error {
	testDB, err := SetupTestDB()
	if err != nil {
		return fmt.Errorf("failed to setup test database: %w", err)
	}
	defer func() {
		if cleanupErr := testDB.TeardownTestDB(); cleanupErr != nil {
			log.Printf("Warning: failed to cleanup test database: %v", cleanupErr)
		}
	}()

	return testFunc(testDB)
}

// CreateTestContext creates a context for testing
func CreateTestContext() context.Context {
	return context.Background()
}

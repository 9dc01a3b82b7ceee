// Package main provides the main entry point for the ad serving engine
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mizuchi/adserving/app/dto"
	"github.com/mizuchi/adserving/app/services"
	businessflow "github.com/mizuchi/adserving/business_flow"
	"github.com/mizuchi/adserving/config"
	"github.com/mizuchi/adserving/models"
	"github.com/mizuchi/adserving/repository"
	"github.com/mizuchi/adserving/utils"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// segmentsInfoKey holds the per-model segment lists maintained by the
// targeting models, as JSON
const segmentsInfoKey = "targeting:segments:info"

// servedDimensions is the creative size the serving cycle delivers into
const servedDimensions = "300x200"

// Engine represents the assembled serving engine
type Engine struct {
	config          *config.EngineConfig
	eligibilityFlow businessflow.EligibilityFlow
	segmentCatalog  businessflow.SegmentCatalog
	adEventRepo     repository.AdEventRepository
	rc              *redis.Client
	stopFuncs       []func()
}

func main() {
	log.Println("Starting ad serving engine...")

	cfg, err := config.LoadEngineConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	engine, err := initializeEngine(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}

	cycleCtx, cancelCycle := context.WithCancel(context.Background())
	go engine.runServingCycle(cycleCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancelCycle()
	for _, fn := range engine.stopFuncs {
		fn()
	}

	log.Println("Engine stopped")
}

// setupLogging routes the standard logger through a size-rotated file when one
// is configured; an empty file keeps stderr for container deployments
func setupLogging(cfg config.LoggingConfig) {
	if cfg.File == "" {
		return
	}

	log.SetOutput(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.RedisConfig) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		DB:       cfg.DB,
		Password: cfg.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.URL, cfg.DB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings
// Redis to detect connectivity issues. The returned cancel function stops the
// monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeEngine initializes the main engine components
func initializeEngine(cfg *config.EngineConfig) (*Engine, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Redis)
	if err != nil {
		return nil, err
	}

	cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
	stopFuncs = append(stopFuncs, cancel)

	// Initialize repositories
	creativeAdRepo := repository.NewCreativeAdRepository(db)
	adEventRepo := repository.NewAdEventRepository(db)

	// Initialize services
	subdivision := services.NewSubdivisionResolver(rc)
	optOut := services.NewOptOutService(rc)
	browsingHistory := services.NewBrowsingHistoryProvider(rc)

	antiTargeting, err := services.LoadAntiTargetingResource(cfg.Serving.AntiTargetingPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load anti-targeting resource: %w", err)
	}
	log.Printf("Anti-targeting resource loaded (version %d)", antiTargeting.Version())

	// Initialize flows
	eligibilityFlow := businessflow.NewEligibilityFlow(
		creativeAdRepo,
		adEventRepo,
		browsingHistory,
		subdivision,
		antiTargeting,
		&cfg.Serving,
		rand.New(rand.NewSource(time.Now().UnixNano())),
	)

	segmentCatalog := businessflow.NewSegmentCatalog(optOut)

	return &Engine{
		config:          cfg,
		eligibilityFlow: eligibilityFlow,
		segmentCatalog:  segmentCatalog,
		adEventRepo:     adEventRepo,
		rc:              rc,
		stopFuncs:       stopFuncs,
	}, nil
}

// runServingCycle periodically selects the best ad for the current targeting
// state and records the delivery
func (e *Engine) runServingCycle(ctx context.Context) {
	ticker := time.NewTicker(e.config.Serving.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.serveOnce(ctx); err != nil {
				log.Printf("Serving cycle failed: %v", err)
			}
		}
	}
}

func (e *Engine) serveOnce(ctx context.Context) error {
	info, err := e.loadSegmentsInfo(ctx)
	if err != nil {
		log.Printf("Failed to load segments info, serving untargeted: %v", err)
		info = models.SegmentsInfo{}
	}

	// Interest covers the text-classification and bandit models; purchase
	// intent is scored separately
	interestInfo := info
	interestInfo.PurchaseIntentSegments = nil

	req := &dto.BestAdRequest{
		InterestSegments: e.segmentCatalog.Merge(ctx, interestInfo),
		IntentSegments:   info.PurchaseIntentSegments,
		Dimensions:       servedDimensions,
	}

	resp, err := e.eligibilityFlow.GetBestAdByPrediction(ctx, req)
	if err != nil {
		return err
	}

	if !resp.Allowed || resp.Ad == nil {
		log.Printf("No ad served this cycle")
		return nil
	}

	log.Printf("Serving creative instance %s (segment %s)", resp.Ad.CreativeInstanceID, resp.Ad.Segment)

	return e.recordServedAd(ctx, resp.Ad)
}

// recordServedAd appends a served event and pins the winner as last served so
// the next cycle rotates away from it
func (e *Engine) recordServedAd(ctx context.Context, ad *dto.CreativeAdDTO) error {
	served, err := businessflow.FromCreativeAdDTO(ad)
	if err != nil {
		return fmt.Errorf("invalid served ad: %w", err)
	}

	event := &models.AdEvent{
		Type:               models.AdTypeInlineContent,
		ConfirmationType:   models.ConfirmationTypeServed,
		CreativeInstanceID: served.CreativeInstanceID,
		CreativeSetID:      served.CreativeSetID,
		CampaignID:         served.CampaignID,
		AdvertiserID:       served.AdvertiserID,
		CreatedAt:          utils.UTCNow(),
	}

	if err := e.adEventRepo.Save(ctx, event); err != nil {
		return fmt.Errorf("failed to record served event: %w", err)
	}

	e.eligibilityFlow.SetLastServedAd(served)
	return nil
}

// loadSegmentsInfo reads the targeting models' current segment lists
func (e *Engine) loadSegmentsInfo(ctx context.Context) (models.SegmentsInfo, error) {
	var info models.SegmentsInfo

	payload, err := e.rc.Get(ctx, segmentsInfoKey).Result()
	if err != nil {
		return info, fmt.Errorf("failed to read %s: %w", segmentsInfoKey, err)
	}

	if err := json.Unmarshal([]byte(payload), &info); err != nil {
		return info, fmt.Errorf("failed to decode segments info: %w", err)
	}

	return info, nil
}

package businessflow

import (
	"math/rand"
)

// SampleFromAds draws one ad with probability proportional to its predictor
// score. When every score is zero the draw falls back to a uniform choice;
// an empty set yields no ad. The random source is injected for reproducible
// tests.
func SampleFromAds[T CreativeAdVariant](predictors map[string]AdPredictor[T], rng *rand.Rand) (T, bool) {
	var zero T

	if len(predictors) == 0 {
		return zero, false
	}

	total := 0.0
	for _, predictor := range predictors {
		total += predictor.Score
	}

	if total <= 0 {
		index := rng.Intn(len(predictors))
		for _, predictor := range predictors {
			if index == 0 {
				return predictor.Ad, true
			}
			index--
		}
		return zero, false
	}

	threshold := rng.Float64() * total
	accumulated := 0.0
	for _, predictor := range predictors {
		accumulated += predictor.Score
		if threshold < accumulated {
			return predictor.Ad, true
		}
	}

	// Floating point accumulation can land exactly on total
	for _, predictor := range predictors {
		return predictor.Ad, true
	}

	return zero, false
}

package forecast

import (
	"context"
	"errors"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
	"github.com/andresuchdata/replenishment-engine/internal/seasonal"
)

// Horizon is the number of daily values every model projects.
const Horizon = 30

var (
	// ErrAllModelsFailed means no ensemble member produced a usable value.
	ErrAllModelsFailed = errors.New("forecast: all models failed")

	errInsufficientHistory = errors.New("insufficient history for model")
)

// ModelInput is shared read-only by every model of one forecast.
type ModelInput struct {
	Series  []seasonal.Point
	Future  []seasonal.Point
	Pattern *domain.SeasonalPattern
}

// Model is one member of the ensemble. Predict returns one value per
// future point; NaN marks a horizon the model could not produce.
type Model interface {
	Name() string
	Weight() float64
	Predict(ctx context.Context, in ModelInput) ([]float64, error)
}

// DefaultModels returns the four ensemble members with their weights.
func DefaultModels() []Model {
	return []Model{
		HoltWinters{Alpha: 0.3, Beta: 0.3, Gamma: 0.3},
		Decomposition{},
		Regression{},
		MovingAverage{},
	}
}

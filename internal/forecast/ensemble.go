package forecast

import (
	"math"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
	"github.com/andresuchdata/replenishment-engine/internal/stats"
)

const (
	intervalZ     = 1.96
	minConfidence = 0.1
)

type modelResult struct {
	name   string
	weight float64
	values []float64
	err    error
}

type combined struct {
	values     []float64
	lower      []float64
	upper      []float64
	confidence float64
	// variability is the first-horizon interval half-width relative to the
	// mean projected value.
	variability float64
}

// combine blends model outputs horizon by horizon. Weights are
// renormalised over the models that produced a finite value at that
// horizon; horizons nobody produced borrow the nearest produced one.
func combine(results []modelResult, horizon int) (combined, error) {
	out := combined{
		values: make([]float64, horizon),
		lower:  make([]float64, horizon),
		upper:  make([]float64, horizon),
	}
	produced := make([]bool, horizon)
	spread := make([]float64, horizon)
	var firstPreds []float64
	firstProduced := -1

	for h := 0; h < horizon; h++ {
		var preds, weights []float64
		for _, r := range results {
			if r.err != nil || h >= len(r.values) || !stats.Finite(r.values[h]) {
				continue
			}
			preds = append(preds, r.values[h])
			weights = append(weights, r.weight)
		}
		if len(preds) == 0 {
			continue
		}

		var wsum, v float64
		for i := range preds {
			wsum += weights[i]
		}
		for i := range preds {
			w := 1 / float64(len(preds))
			if wsum > 0 {
				w = weights[i] / wsum
			}
			v += w * preds[i]
		}

		produced[h] = true
		out.values[h] = v
		spread[h] = stats.StdDev(preds)
		if firstProduced < 0 {
			firstProduced = h
			firstPreds = preds
		}
	}
	if firstProduced < 0 {
		return out, ErrAllModelsFailed
	}

	for h := 0; h < horizon; h++ {
		if produced[h] {
			continue
		}
		src := nearestProduced(produced, h)
		out.values[h] = out.values[src]
		spread[h] = spread[src]
	}

	for h := 0; h < horizon; h++ {
		half := intervalZ * spread[h]
		out.lower[h] = math.Max(0, out.values[h]-half)
		out.upper[h] = out.values[h] + half
	}

	out.confidence = confidence(firstPreds)
	if m := stats.Mean(out.values); m > 0 {
		out.variability = intervalZ * spread[0] / m
	}
	return out, nil
}

func confidence(preds []float64) float64 {
	m := stats.Mean(preds)
	if m <= 0 {
		return minConfidence
	}
	c := 1 - stats.StdDev(preds)/m
	return math.Min(1, math.Max(minConfidence, c))
}

func nearestProduced(produced []bool, h int) int {
	for d := 1; d < len(produced); d++ {
		if h-d >= 0 && produced[h-d] {
			return h - d
		}
		if h+d < len(produced) && produced[h+d] {
			return h + d
		}
	}
	return h
}

func metrics(results []modelResult) []domain.ModelMetric {
	out := make([]domain.ModelMetric, 0, len(results))
	for _, r := range results {
		m := domain.ModelMetric{Name: r.name, Weight: r.weight}
		if r.err != nil {
			m.Failed = true
			m.Error = r.err.Error()
			out = append(out, m)
			continue
		}
		for _, v := range r.values {
			if stats.Finite(v) {
				m.Horizons++
			}
		}
		if len(r.values) > 0 && stats.Finite(r.values[0]) {
			m.FirstValue = r.values[0]
		}
		m.Failed = m.Horizons == 0
		out = append(out, m)
	}
	return out
}

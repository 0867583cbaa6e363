package stats

import (
	"math"

	"genalg/internal/model"
)

type SeriesPoint struct {
	Step int     `json:"step"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Max  float64 `json:"max"`
}

// MaxSeries returns the per-generation best fitness of one run.
func MaxSeries(history []model.GenerationRecord) []float64 {
	series := make([]float64, 0, len(history))
	for _, record := range history {
		series = append(series, record.Statistics.CurrentMax)
	}
	return series
}

// AverageSeries aggregates the per-generation best fitness of several runs.
// Point i covers every run that reached generation i+1, so runs of different
// lengths are allowed.
func AverageSeries(histories [][]model.GenerationRecord) []SeriesPoint {
	longest := 0
	for _, history := range histories {
		longest = max(longest, len(history))
	}

	points := make([]SeriesPoint, 0, longest)
	for i := 0; i < longest; i++ {
		values := make([]float64, 0, len(histories))
		step := i + 1
		for _, history := range histories {
			if i < len(history) {
				values = append(values, history[i].Statistics.CurrentMax)
				step = history[i].Statistics.Step
			}
		}
		mean, std := avgStd(values)
		points = append(points, SeriesPoint{Step: step, Mean: mean, Std: std, Max: maxFloat(values)})
	}
	return points
}

func avgStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}

func maxFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	best := values[0]
	for _, v := range values[1:] {
		best = max(best, v)
	}
	return best
}

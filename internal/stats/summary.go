package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary condenses a best-score-per-generation series.
type Summary struct {
	Generations int     `json:"generations"`
	InitialBest float64 `json:"initial_best"`
	FinalBest   float64 `json:"final_best"`
	BestMean    float64 `json:"best_mean"`
	BestStd     float64 `json:"best_std"`
	BestMax     float64 `json:"best_max"`
	BestMin     float64 `json:"best_min"`
	Improvement float64 `json:"improvement"`
}

func Summarize(bestByGeneration []float64) Summary {
	if len(bestByGeneration) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(bestByGeneration, nil)
	if len(bestByGeneration) == 1 {
		std = 0
	}
	first := bestByGeneration[0]
	last := bestByGeneration[len(bestByGeneration)-1]
	return Summary{
		Generations: len(bestByGeneration),
		InitialBest: first,
		FinalBest:   last,
		BestMean:    mean,
		BestStd:     std,
		BestMax:     floats.Max(bestByGeneration),
		BestMin:     floats.Min(bestByGeneration),
		Improvement: last - first,
	}
}

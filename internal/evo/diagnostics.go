package evo

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GenerationDiagnostics summarizes one scored generation before it advances.
type GenerationDiagnostics struct {
	Generation int     `json:"generation"`
	BestScore  float64 `json:"best_score"`
	MeanScore  float64 `json:"mean_score"`
	MinScore   float64 `json:"min_score"`
	MaxScore   float64 `json:"max_score"`
	StdDev     float64 `json:"std_dev"`
}

// Diagnose reports score statistics; BestScore follows cmp.
func (p *Population) Diagnose(generation int, cmp Comparator) GenerationDiagnostics {
	scores := make([]float64, len(p.individuals))
	for i, ind := range p.individuals {
		scores[i] = float64(ind.Score)
	}
	mean, std := stat.MeanStdDev(scores, nil)
	return GenerationDiagnostics{
		Generation: generation,
		BestScore:  float64(p.BestScore(cmp)),
		MeanScore:  mean,
		MinScore:   floats.Min(scores),
		MaxScore:   floats.Max(scores),
		StdDev:     std,
	}
}

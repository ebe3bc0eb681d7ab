package evo

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"interceptor/internal/model"
)

func summarize(generation int, fitness []float64) model.GenerationDiagnostics {
	diag := model.GenerationDiagnostics{Generation: generation}
	if len(fitness) == 0 {
		return diag
	}
	diag.BestFitness = floats.Max(fitness)
	diag.MinFitness = floats.Min(fitness)
	diag.MeanFitness = stat.Mean(fitness, nil)
	if len(fitness) > 1 {
		diag.StdDevFitness = stat.StdDev(fitness, nil)
	}
	return diag
}

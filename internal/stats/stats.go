// Package stats holds the numeric primitives behind the readmission model.
// All functions are pure and total over their documented domains.
package stats

import "math"

// OnlineMean folds x into a running mean.
func OnlineMean(prevMean float64, prevCount int64, x float64) (float64, int64) {
	count := prevCount + 1
	delta := x - prevMean
	return prevMean + delta/float64(count), count
}

// OnlineMeanVariance folds x into running Welford state.
// m2 is the sum of squared deviations from the mean, not the variance.
func OnlineMeanVariance(prevMean, prevM2 float64, prevCount int64, x float64) (mean, m2 float64, count int64) {
	count = prevCount + 1
	delta := x - prevMean
	mean = prevMean + delta/float64(count)
	m2 = prevM2 + delta*(x-mean)
	return mean, m2, count
}

// BatchMean returns the mean of values, 0 when empty.
func BatchMean(values []float64) float64 {
	var mean float64
	var count int64
	for _, v := range values {
		mean, count = OnlineMean(mean, count, v)
	}
	return mean
}

// BatchStdDev returns the population standard deviation sqrt(M2/n).
// Returns 0 for fewer than two values.
func BatchStdDev(values []float64) float64 {
	var mean, m2 float64
	var count int64
	for _, v := range values {
		mean, m2, count = OnlineMeanVariance(mean, m2, count, v)
	}
	if count <= 1 {
		return 0
	}
	return math.Sqrt(m2 / float64(count))
}

// SampleStdDev returns sqrt(m2/(count-1)), 0 when count <= 1.
// This is the form reported by the incremental (cached) path; BatchStdDev
// divides by count instead.
func SampleStdDev(m2 float64, count int64) float64 {
	if count <= 1 {
		return 0
	}
	return math.Sqrt(m2 / float64(count-1))
}

// Model coefficients of the readmission logistic regression.
const (
	Intercept             = -5.0
	AgeCoefficient        = 0.002
	BloodPressureCoef     = 0.001
	RespiratoryRateCoef   = 0.03
	TemperatureStdDevCoef = 0.02
)

// LogisticProbability returns the readmission probability in (0, 1).
func LogisticProbability(age int, lastBloodPressure, meanRespiratoryRate, stdDevTemperature float64) float64 {
	x := Intercept + AgeCoefficient*float64(age) + BloodPressureCoef*lastBloodPressure + RespiratoryRateCoef*meanRespiratoryRate
	x += TemperatureStdDevCoef * stdDevTemperature
	return sigmoid(x)
}

// sigmoid never evaluates exp of a positive argument, so large |x| saturates instead of giving NaN
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

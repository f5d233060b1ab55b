package profiling

import (
	"math"

	"github.com/montanaflynn/stats"
)

// FeatureSummary describes one feature column pooled across the cohort
type FeatureSummary struct {
	Index    int     `json:"index"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Median   float64 `json:"median"`
	Q25      float64 `json:"q25"`
	Q75      float64 `json:"q75"`
	Skewness float64 `json:"skewness"`
	Outliers int     `json:"outliers"`
	// Constant columns carry no information for any kernel.
	Constant bool `json:"constant"`
}

// summarizeFeature computes the distribution summary of one column
func summarizeFeature(index int, data stats.Float64Data) (FeatureSummary, error) {
	s := FeatureSummary{Index: index}

	var err error
	if s.Mean, err = data.Mean(); err != nil {
		return s, err
	}
	if s.StdDev, err = data.StandardDeviation(); err != nil {
		return s, err
	}
	if s.Min, err = data.Min(); err != nil {
		return s, err
	}
	if s.Max, err = data.Max(); err != nil {
		return s, err
	}
	if s.Median, err = data.Median(); err != nil {
		return s, err
	}
	if s.Q25, err = data.Percentile(25); err != nil {
		return s, err
	}
	if s.Q75, err = data.Percentile(75); err != nil {
		return s, err
	}

	s.Constant = s.Max == s.Min
	if !s.Constant {
		s.Skewness = calculateSkewness(data, s.Mean, s.StdDev)
		s.Outliers = detectOutliers(data, s.Q25, s.Q75)
	}
	return s, nil
}

// calculateSkewness computes sample skewness using the adjusted Fisher-Pearson coefficient
func calculateSkewness(data []float64, mean, stdDev float64) float64 {
	if len(data) < 3 || stdDev == 0 {
		return 0
	}

	n := float64(len(data))
	sumCubedDeviations := 0.0
	for _, x := range data {
		deviation := (x - mean) / stdDev
		sumCubedDeviations += deviation * deviation * deviation
	}

	skewness := sumCubedDeviations / n
	return skewness * math.Sqrt(n*(n-1)) / (n - 2)
}

// detectOutliers counts values outside 1.5 IQR of the quartiles
func detectOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lowerBound := q25 - 1.5*iqr
	upperBound := q75 + 1.5*iqr

	outlierCount := 0
	for _, x := range data {
		if x < lowerBound || x > upperBound {
			outlierCount++
		}
	}
	return outlierCount
}

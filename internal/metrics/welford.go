package metrics

import "math"

// RunningStats tracks mean and spread of a stream of observations using
// Welford's online algorithm, without storing the observations.
type RunningStats struct {
	Count int     // number of observations
	Mean  float64 // running mean
	M2    float64 // sum of squared differences from the mean
	Min   float64
	Max   float64
}

// Update adds an observation.
// Reference: https://en.wikipedia.org/wiki/Algorithms_for_calculating_variance#Welford's_online_algorithm
func (s *RunningStats) Update(v float64) {
	if s.Count == 0 || v < s.Min {
		s.Min = v
	}
	if s.Count == 0 || v > s.Max {
		s.Max = v
	}
	s.Count++
	delta := v - s.Mean
	s.Mean += delta / float64(s.Count)
	delta2 := v - s.Mean
	s.M2 += delta * delta2
}

// StdDev returns the population standard deviation, 0 with fewer than two
// observations.
func (s *RunningStats) StdDev() float64 {
	if s.Count < 2 {
		return 0
	}
	return math.Sqrt(s.M2 / float64(s.Count))
}

package diagnosis

import "math"

// angularDistance returns the shortest arc between two angles, normalized to
// [0, 1] by its maximum of π.
func angularDistance(a, b float64) float64 {
	d := math.Abs(a - b)
	d = math.Mod(d, 2*math.Pi)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d / math.Pi
}

// pairSimilarity scores one matched pair in [0, 1]: 1 when the patient's
// point coincides with the reference point, decreasing with angular and
// magnitude disagreement in equal parts.
func pairSimilarity(p pair) float64 {
	angleDiff := angularDistance(p.patient.Angle, p.reference.Angle)
	magDiff := math.Abs(p.patient.Magnitude - p.reference.Magnitude)
	return 1 - (angleDiff+magDiff)/2
}

// bayesianLikelihood is the weighted mean of pair similarities.  The weight
// of a pair is the reference variable's weight, the disease profile's
// statement of how discriminating the finding is.  No matched pairs → 0.
func bayesianLikelihood(ms *matchSet) float64 {
	var sum, weightSum float64
	for _, dp := range ms.domains {
		for _, p := range dp.pairs {
			w := p.reference.Weight
			if w <= 0 {
				continue
			}
			sum += w * pairSimilarity(p)
			weightSum += w
		}
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}

// normalizePosteriors converts per-candidate prior×likelihood products into
// a distribution summing to 1.  An all-zero evidence vector stays all-zero
// rather than being forced uniform: no evidence is not equal belief.
func normalizePosteriors(unnormalized []float64) []float64 {
	var total float64
	for _, v := range unnormalized {
		total += v
	}
	out := make([]float64, len(unnormalized))
	if total == 0 {
		return out
	}
	for i, v := range unnormalized {
		out[i] = v / total
	}
	return out
}

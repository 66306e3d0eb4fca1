package diagnosis

import (
	"math"
	"math/cmplx"
)

// kuramotoOrder computes the phase-synchronization order parameter over the
// matched pairs:
//
//	r = | (1/N) Σ exp(i·(θ_patient − θ_reference)) |
//
// r = 1 when every patient variable sits at exactly its reference angle
// (full synchrony), and decays toward 0 as the phase errors disperse around
// the circle.  Magnitudes deliberately do not enter: this measure isolates
// structural agreement from intensity agreement, which the Bayesian term
// already covers.  No matched pairs → 0.
func kuramotoOrder(ms *matchSet) float64 {
	if ms.total == 0 {
		return 0
	}
	var sum complex128
	for _, dp := range ms.domains {
		for _, p := range dp.pairs {
			sum += cmplx.Exp(complex(0, p.patient.Angle-p.reference.Angle))
		}
	}
	r := cmplx.Abs(sum) / float64(ms.total)
	// Guard against float accumulation nudging the mean above 1.
	return math.Min(r, 1)
}

package diagnosis

import "github.com/diagnovera/diagnovera/pkg/types/clinical"

// strongMatchThreshold is the magnitude floor above which a matched pair
// counts as an affirmative finding on both sides.  Pairs where either side
// is absent or negated do not strengthen a transition.
const strongMatchThreshold = 0.5

// domainAgreement is the fraction of the patient's variables in one domain
// that match the reference affirmatively on both sides.
func domainAgreement(dp *domainPairs) float64 {
	if dp == nil || dp.patientCount == 0 {
		return 0
	}
	strong := 0
	for _, p := range dp.pairs {
		if p.patient.Magnitude > strongMatchThreshold && p.reference.Magnitude > strongMatchThreshold {
			strong++
		}
	}
	return float64(strong) / float64(dp.patientCount)
}

// markovChain models the clinical workup as a first-order chain over the
// canonical domain sequence (subjective → vitals → examination → laboratory
// → imaging → procedures).  Each transition between two adjacent domains
// scores as the product of the two domains' agreement fractions; the measure
// is the mean over the evaluated transitions.
//
// A transition is evaluated only when BOTH endpoint domains hold at least
// one matched pair: a workup that never reached imaging is not penalized for
// the missing step.  No evaluable transition → 0.
func markovChain(ms *matchSet) float64 {
	seq := clinical.DomainSequence()

	var sum float64
	transitions := 0
	for i := 0; i < len(seq)-1; i++ {
		from := ms.domainFor(seq[i])
		to := ms.domainFor(seq[i+1])
		if from == nil || to == nil || len(from.pairs) == 0 || len(to.pairs) == 0 {
			continue
		}
		sum += domainAgreement(from) * domainAgreement(to)
		transitions++
	}
	if transitions == 0 {
		return 0
	}
	return sum / float64(transitions)
}

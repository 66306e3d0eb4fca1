// Package diagnosis implements the similarity engine: pairing of patient
// and reference variables, the three component measures (Bayesian, Kuramoto
// synchronization, Markov chain), and the weighted ensemble that ranks
// candidate diagnoses.
package diagnosis

import (
	"github.com/diagnovera/diagnovera/internal/domain/complexplane"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

// pair couples one patient variable with the reference variable of the same
// name in the same domain.  Only paired variables contribute to any measure:
// findings the reference profile says nothing about are informationless, not
// evidence against the disease.
type pair struct {
	patient   complexplane.Variable
	reference complexplane.Variable
}

// domainPairs is the per-domain pairing result.
type domainPairs struct {
	domain clinical.Domain
	pairs  []pair
	// patientCount is the number of patient variables in this domain,
	// matched or not.  The Markov measure normalizes by it.
	patientCount int
}

// matchSet is everything the component measures consume for one
// (encounter, profile) combination.
type matchSet struct {
	domains []domainPairs
	// byDomain indexes into domains by canonical domain position; -1 when
	// the patient has no variables in that domain.
	byDomain [clinical.DomainCount]int
	total    int
}

// buildMatchSet pairs the encounter's variables against one profile.
// Domains are visited in canonical order so every consumer sees a
// deterministic pair sequence.
func buildMatchSet(enc *complexplane.Encounter, profile *complexplane.Profile) *matchSet {
	ms := &matchSet{}
	for i := range ms.byDomain {
		ms.byDomain[i] = -1
	}

	for _, domain := range clinical.DomainSequence() {
		patientData := enc.Domain(domain)
		if patientData.Len() == 0 {
			continue
		}

		dp := domainPairs{domain: domain, patientCount: patientData.Len()}
		refData := profile.Domain(domain)
		for _, pv := range patientData.Variables() {
			rv, ok := refData.Get(pv.Name)
			if !ok {
				continue
			}
			dp.pairs = append(dp.pairs, pair{patient: pv, reference: rv})
		}

		ms.byDomain[domain.Index()] = len(ms.domains)
		ms.domains = append(ms.domains, dp)
		ms.total += len(dp.pairs)
	}
	return ms
}

// allPairs returns the flattened pair list in canonical domain order.
func (ms *matchSet) allPairs() []pair {
	out := make([]pair, 0, ms.total)
	for _, dp := range ms.domains {
		out = append(out, dp.pairs...)
	}
	return out
}

// domainFor returns the pairing result for one domain, nil when the patient
// has no variables there.
func (ms *matchSet) domainFor(d clinical.Domain) *domainPairs {
	i := ms.byDomain[d.Index()]
	if i < 0 {
		return nil
	}
	return &ms.domains[i]
}

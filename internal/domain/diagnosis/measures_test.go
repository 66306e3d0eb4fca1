package diagnosis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnovera/diagnovera/internal/domain/complexplane"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

// buildDomain constructs a DomainData from (name, angle, magnitude, weight)
// tuples, failing the test on duplicates.
func buildDomain(t *testing.T, domain clinical.Domain, vars ...complexplane.Variable) *complexplane.DomainData {
	t.Helper()
	dd := complexplane.NewDomainData(domain)
	for _, v := range vars {
		v.Domain = domain
		if v.Weight == 0 {
			v.Weight = 1
		}
		require.NoError(t, dd.Add(v))
	}
	return dd
}

func buildEncounter(t *testing.T, domains ...*complexplane.DomainData) *complexplane.Encounter {
	t.Helper()
	enc := &complexplane.Encounter{
		ID:      "enc-test",
		Domains: make(map[clinical.Domain]*complexplane.DomainData),
	}
	for _, dd := range domains {
		enc.Domains[dd.Domain()] = dd
	}
	return enc
}

func buildProfile(t *testing.T, diseaseID string, domains ...*complexplane.DomainData) *complexplane.Profile {
	t.Helper()
	p := &complexplane.Profile{
		DiseaseID: diseaseID,
		Domains:   make(map[clinical.Domain]*complexplane.DomainData),
	}
	for _, dd := range domains {
		p.Domains[dd.Domain()] = dd
	}
	return p
}

// mirrorProfile clones an encounter's representation as a reference profile.
func mirrorProfile(t *testing.T, enc *complexplane.Encounter, diseaseID string) *complexplane.Profile {
	t.Helper()
	p := &complexplane.Profile{
		DiseaseID: diseaseID,
		Domains:   make(map[clinical.Domain]*complexplane.DomainData),
	}
	for domain, dd := range enc.Domains {
		clone := complexplane.NewDomainData(domain)
		for _, v := range dd.Variables() {
			require.NoError(t, clone.Add(v))
		}
		p.Domains[domain] = clone
	}
	return p
}

func TestAngularDistance(t *testing.T) {
	assert.Equal(t, 0.0, angularDistance(1.2, 1.2))
	assert.InDelta(t, 1.0, angularDistance(0, math.Pi), 1e-12)
	// Wraps the short way around the circle.
	assert.InDelta(t, 0.1/math.Pi, angularDistance(0.05, 2*math.Pi-0.05), 1e-12)
}

func TestPairSimilarity(t *testing.T) {
	identical := pair{
		patient:   complexplane.Variable{Angle: math.Pi / 3, Magnitude: 0.5},
		reference: complexplane.Variable{Angle: math.Pi / 3, Magnitude: 0.5},
	}
	assert.Equal(t, 1.0, pairSimilarity(identical))

	opposite := pair{
		patient:   complexplane.Variable{Angle: 0, Magnitude: 1},
		reference: complexplane.Variable{Angle: math.Pi, Magnitude: 0},
	}
	assert.InDelta(t, 0.0, pairSimilarity(opposite), 1e-12)

	magOnly := pair{
		patient:   complexplane.Variable{Angle: 1, Magnitude: 0.5},
		reference: complexplane.Variable{Angle: 1, Magnitude: 0.58},
	}
	assert.InDelta(t, 0.96, pairSimilarity(magOnly), 1e-12)
}

func TestBayesianWeightsByReferenceVariable(t *testing.T) {
	enc := buildEncounter(t, buildDomain(t, clinical.DomainSubjective,
		complexplane.Variable{Name: "fever", Angle: 0.1, Magnitude: 1},
		complexplane.Variable{Name: "cough", Angle: 0.2, Magnitude: 1},
	))
	// fever agrees perfectly, cough disagrees fully in magnitude; the heavy
	// weight on fever must dominate the mean.
	profile := buildProfile(t, "J18.9", buildDomain(t, clinical.DomainSubjective,
		complexplane.Variable{Name: "fever", Angle: 0.1, Magnitude: 1, Weight: 9},
		complexplane.Variable{Name: "cough", Angle: 0.2, Magnitude: 0, Weight: 1},
	))

	ms := buildMatchSet(enc, profile)
	// (9·1.0 + 1·0.5) / 10
	assert.InDelta(t, 0.95, bayesianLikelihood(ms), 1e-12)
}

func TestBayesianNoMatches(t *testing.T) {
	enc := buildEncounter(t, buildDomain(t, clinical.DomainSubjective,
		complexplane.Variable{Name: "fever", Angle: 0.1, Magnitude: 1},
	))
	profile := buildProfile(t, "X", buildDomain(t, clinical.DomainSubjective,
		complexplane.Variable{Name: "rash", Angle: 0.2, Magnitude: 1},
	))
	assert.Equal(t, 0.0, bayesianLikelihood(buildMatchSet(enc, profile)))
}

func TestKuramotoPerfectSynchrony(t *testing.T) {
	enc := buildEncounter(t, buildDomain(t, clinical.DomainVitals,
		complexplane.Variable{Name: "heart_rate", Angle: math.Pi / 3, Magnitude: 0.5},
		complexplane.Variable{Name: "temperature", Angle: math.Pi/3 + 0.02, Magnitude: 0.4},
	))
	assert.InDelta(t, 1.0, kuramotoOrder(buildMatchSet(enc, mirrorProfile(t, enc, "X"))), 1e-12)
}

func TestKuramotoScatteredPhases(t *testing.T) {
	// Two pairs with opposite phase errors cancel: order parameter 0.
	enc := buildEncounter(t, buildDomain(t, clinical.DomainVitals,
		complexplane.Variable{Name: "a", Angle: math.Pi, Magnitude: 1},
		complexplane.Variable{Name: "b", Angle: 0, Magnitude: 1},
	))
	profile := buildProfile(t, "X", buildDomain(t, clinical.DomainVitals,
		complexplane.Variable{Name: "a", Angle: 0, Magnitude: 1},
		complexplane.Variable{Name: "b", Angle: math.Pi, Magnitude: 1},
	))
	assert.InDelta(t, 0.0, kuramotoOrder(buildMatchSet(enc, profile)), 1e-12)
}

func TestKuramotoNoMatches(t *testing.T) {
	enc := buildEncounter(t)
	assert.Equal(t, 0.0, kuramotoOrder(buildMatchSet(enc, buildProfile(t, "X"))))
}

func TestMarkovAdjacentDomains(t *testing.T) {
	subj := buildDomain(t, clinical.DomainSubjective,
		complexplane.Variable{Name: "chest_pain", Angle: 0.01, Magnitude: 1},
		complexplane.Variable{Name: "nausea", Angle: 0.02, Magnitude: 1},
	)
	vit := buildDomain(t, clinical.DomainVitals,
		complexplane.Variable{Name: "heart_rate", Angle: math.Pi / 3, Magnitude: 0.8},
	)
	enc := buildEncounter(t, subj, vit)

	// Reference matches chest_pain and heart_rate strongly, omits nausea.
	profile := buildProfile(t, "I21.9",
		buildDomain(t, clinical.DomainSubjective,
			complexplane.Variable{Name: "chest_pain", Angle: 0.01, Magnitude: 1},
		),
		buildDomain(t, clinical.DomainVitals,
			complexplane.Variable{Name: "heart_rate", Angle: math.Pi / 3, Magnitude: 0.9},
		),
	)

	// subjective agreement 1/2, vitals agreement 1/1, one transition.
	assert.InDelta(t, 0.5, markovChain(buildMatchSet(enc, profile)), 1e-12)
}

func TestMarkovSkipsGappedDomains(t *testing.T) {
	// subjective and laboratory are populated but not adjacent; no
	// transition is evaluable.
	enc := buildEncounter(t,
		buildDomain(t, clinical.DomainSubjective,
			complexplane.Variable{Name: "fever", Angle: 0.01, Magnitude: 1}),
		buildDomain(t, clinical.DomainLaboratory,
			complexplane.Variable{Name: "wbc", Angle: math.Pi, Magnitude: 0.9}),
	)
	assert.Equal(t, 0.0, markovChain(buildMatchSet(enc, mirrorProfile(t, enc, "X"))))
}

func TestMarkovSingleDomain(t *testing.T) {
	enc := buildEncounter(t, buildDomain(t, clinical.DomainVitals,
		complexplane.Variable{Name: "heart_rate", Angle: math.Pi / 3, Magnitude: 0.5},
	))
	assert.Equal(t, 0.0, markovChain(buildMatchSet(enc, mirrorProfile(t, enc, "X"))))
}

func TestMarkovIgnoresWeakMatches(t *testing.T) {
	// Magnitudes at or below 0.5 on either side do not count as affirmative.
	enc := buildEncounter(t,
		buildDomain(t, clinical.DomainSubjective,
			complexplane.Variable{Name: "fever", Angle: 0.01, Magnitude: 0.5}),
		buildDomain(t, clinical.DomainVitals,
			complexplane.Variable{Name: "heart_rate", Angle: math.Pi / 3, Magnitude: 0.9}),
	)
	assert.Equal(t, 0.0, markovChain(buildMatchSet(enc, mirrorProfile(t, enc, "X"))))
}

func TestMatchSetCounts(t *testing.T) {
	enc := buildEncounter(t,
		buildDomain(t, clinical.DomainSubjective,
			complexplane.Variable{Name: "fever", Angle: 0.01, Magnitude: 1},
			complexplane.Variable{Name: "cough", Angle: 0.02, Magnitude: 1}),
		buildDomain(t, clinical.DomainVitals,
			complexplane.Variable{Name: "heart_rate", Angle: math.Pi / 3, Magnitude: 0.5}),
	)
	profile := buildProfile(t, "J18.9",
		buildDomain(t, clinical.DomainSubjective,
			complexplane.Variable{Name: "fever", Angle: 0.01, Magnitude: 1}),
	)

	ms := buildMatchSet(enc, profile)
	assert.Equal(t, 1, ms.total)
	assert.Equal(t, 2, ms.domainFor(clinical.DomainSubjective).patientCount)
	assert.Len(t, ms.domainFor(clinical.DomainVitals).pairs, 0)
	assert.Nil(t, ms.domainFor(clinical.DomainImaging))
	assert.Len(t, ms.allPairs(), 1)
}

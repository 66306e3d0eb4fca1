package complexplane

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnovera/diagnovera/pkg/errors"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

func TestVariablePhasor(t *testing.T) {
	v := Variable{Angle: math.Pi / 2, Magnitude: 0.5}
	p := v.Phasor()
	assert.InDelta(t, 0, real(p), 1e-12)
	assert.InDelta(t, 0.5, imag(p), 1e-12)
}

func TestNormalizeAngle(t *testing.T) {
	assert.InDelta(t, math.Pi, normalizeAngle(3*math.Pi), 1e-12)
	assert.InDelta(t, 3*math.Pi/2, normalizeAngle(-math.Pi/2), 1e-12)
	assert.Equal(t, 0.0, normalizeAngle(0))
}

func TestDomainDataAddAndGet(t *testing.T) {
	dd := NewDomainData(clinical.DomainVitals)
	require.NoError(t, dd.Add(Variable{Name: "heart_rate", Magnitude: 0.5}))

	err := dd.Add(Variable{Name: "heart_rate", Magnitude: 0.9})
	require.Error(t, err)
	assert.Equal(t, errors.CodeConflict, errors.GetCode(err))

	v, ok := dd.Get("heart_rate")
	require.True(t, ok)
	assert.Equal(t, 0.5, v.Magnitude, "first insertion wins")

	_, ok = dd.Get("temperature")
	assert.False(t, ok)
}

func TestDomainDataNilSafe(t *testing.T) {
	var dd *DomainData
	assert.Equal(t, 0, dd.Len())
	assert.Nil(t, dd.Variables())
	_, ok := dd.Get("anything")
	assert.False(t, ok)
}

func TestDomainDataVariablesReturnsCopy(t *testing.T) {
	dd := NewDomainData(clinical.DomainVitals)
	require.NoError(t, dd.Add(Variable{Name: "heart_rate", Magnitude: 0.5}))

	vars := dd.Variables()
	vars[0].Magnitude = 0.99

	v, _ := dd.Get("heart_rate")
	assert.Equal(t, 0.5, v.Magnitude)
}

func TestProfileFromRecord(t *testing.T) {
	w := 2.0
	rec := clinical.ProfileRecord{
		DiseaseID:   "I21.9",
		Description: "Acute myocardial infarction",
		Category:    "cardiovascular",
		Confidence:  0.9,
		Domains: map[clinical.Domain][]clinical.VariableRecord{
			clinical.DomainVitals: {
				{Name: "heart_rate", Angle: math.Pi/3 + twoPi, Magnitude: 1.4, Weight: &w},
				{Name: ""}, // dropped
			},
			clinical.Domain("genomics"): {
				{Name: "brca1", Magnitude: 1},
			},
		},
	}

	p, err := ProfileFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "I21.9", p.DiseaseID)
	assert.Len(t, p.Domains, 1, "invalid domain dropped")

	v, ok := p.Domain(clinical.DomainVitals).Get("heart_rate")
	require.True(t, ok)
	assert.InDelta(t, math.Pi/3, v.Angle, 1e-9, "angle folded into [0, 2π)")
	assert.Equal(t, 1.0, v.Magnitude, "magnitude clamped")
	assert.Equal(t, 2.0, v.Weight)
}

func TestProfileFromRecordRequiresDiseaseID(t *testing.T) {
	_, err := ProfileFromRecord(clinical.ProfileRecord{Description: "nameless"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeProfileInvalid, errors.GetCode(err))
}

func TestProfileRecordRoundTrip(t *testing.T) {
	w := 1.5
	rec := clinical.ProfileRecord{
		DiseaseID:   "J18.9",
		Description: "Pneumonia, unspecified organism",
		Sources:     []string{"pubmed:123"},
		Confidence:  0.8,
		Domains: map[clinical.Domain][]clinical.VariableRecord{
			clinical.DomainSubjective: {
				{Name: "fever", Angle: 0.01, Magnitude: 1, Weight: &w},
				{Name: "cough", Angle: 0.02, Magnitude: 1},
			},
		},
	}

	p, err := ProfileFromRecord(rec)
	require.NoError(t, err)

	out := p.Record()
	assert.Equal(t, rec.DiseaseID, out.DiseaseID)
	assert.Equal(t, rec.Sources, out.Sources)

	vars := out.Domains[clinical.DomainSubjective]
	require.Len(t, vars, 2)
	// Deterministic name order regardless of insertion order.
	assert.Equal(t, "cough", vars[0].Name)
	assert.Equal(t, "fever", vars[1].Name)
	assert.Equal(t, 1.5, *vars[1].Weight)
}

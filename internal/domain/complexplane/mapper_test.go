package complexplane

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnovera/diagnovera/internal/testutil"
	"github.com/diagnovera/diagnovera/pkg/errors"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

func f64(v float64) *float64 { return &v }
func boolp(v bool) *bool     { return &v }

func testRanges() map[clinical.Domain]map[string]clinical.Range {
	return map[clinical.Domain]map[string]clinical.Range{
		clinical.DomainVitals: {
			"heart_rate":  {Min: 40, Max: 200},
			"temperature": {Min: 35, Max: 42},
		},
		clinical.DomainLaboratory: {
			"troponin": {Min: 0, Max: 50},
		},
	}
}

func newTestMapper(t *testing.T, opts MapperOptions) *Mapper {
	t.Helper()
	return NewMapper(NewAllocator(AllocatorConfig{IncrementDegrees: 1}), opts, nil)
}

func TestMapDomainCategorical(t *testing.T) {
	m := newTestMapper(t, MapperOptions{})

	dd, err := m.MapDomain(clinical.DomainSubjective, []clinical.Observation{
		{Name: "chest_pain", Present: boolp(true)},
		{Name: "fever", Present: boolp(false)},
	})
	require.NoError(t, err)
	require.Equal(t, 2, dd.Len())

	asserted, ok := dd.Get("chest_pain")
	require.True(t, ok)
	assert.Equal(t, 1.0, asserted.Magnitude)

	negated, ok := dd.Get("fever")
	require.True(t, ok)
	assert.Equal(t, 0.0, negated.Magnitude)
}

func TestMapDomainNumericNormalization(t *testing.T) {
	m := newTestMapper(t, MapperOptions{Ranges: testRanges()})

	dd, err := m.MapDomain(clinical.DomainVitals, []clinical.Observation{
		{Name: "heart_rate", Value: f64(120)},
		{Name: "temperature", Value: f64(44)}, // above range, clamps
	})
	require.NoError(t, err)

	hr, ok := dd.Get("heart_rate")
	require.True(t, ok)
	assert.InDelta(t, 0.5, hr.Magnitude, 1e-12)
	assert.InDelta(t, math.Pi/3, hr.Angle, 1e-12)

	temp, ok := dd.Get("temperature")
	require.True(t, ok)
	assert.Equal(t, 1.0, temp.Magnitude)
}

func TestMapDomainClampsBelowRange(t *testing.T) {
	m := newTestMapper(t, MapperOptions{Ranges: testRanges()})

	dd, err := m.MapDomain(clinical.DomainVitals, []clinical.Observation{
		{Name: "heart_rate", Value: f64(20)},
	})
	require.NoError(t, err)

	hr, _ := dd.Get("heart_rate")
	assert.Equal(t, 0.0, hr.Magnitude)
}

func TestMapDomainLaboratoryMixed(t *testing.T) {
	m := newTestMapper(t, MapperOptions{Ranges: testRanges()})

	dd, err := m.MapDomain(clinical.DomainLaboratory, []clinical.Observation{
		{Name: "troponin", Value: f64(25)},
		{Name: "blood_culture_positive", Present: boolp(true)},
	})
	require.NoError(t, err)
	require.Equal(t, 2, dd.Len())

	trop, _ := dd.Get("troponin")
	assert.InDelta(t, 0.5, trop.Magnitude, 1e-12)

	culture, _ := dd.Get("blood_culture_positive")
	assert.Equal(t, 1.0, culture.Magnitude)
}

func TestMapDomainNoRange(t *testing.T) {
	obs := []clinical.Observation{{Name: "lactate", Value: f64(4)}}

	t.Run("skipped without fallback", func(t *testing.T) {
		m := newTestMapper(t, MapperOptions{Ranges: testRanges()})
		dd, err := m.MapDomain(clinical.DomainLaboratory, obs)
		require.NoError(t, err)
		assert.Equal(t, 0, dd.Len())
	})

	t.Run("presence fallback", func(t *testing.T) {
		m := newTestMapper(t, MapperOptions{Ranges: testRanges(), PresenceFallback: true})
		dd, err := m.MapDomain(clinical.DomainLaboratory, obs)
		require.NoError(t, err)
		v, ok := dd.Get("lactate")
		require.True(t, ok)
		assert.Equal(t, 1.0, v.Magnitude)
	})
}

func TestMapDomainDropsMalformed(t *testing.T) {
	m := newTestMapper(t, MapperOptions{Ranges: testRanges()})

	dd, err := m.MapDomain(clinical.DomainVitals, []clinical.Observation{
		{Name: "", Value: f64(98)},                                 // missing name
		{Name: "heart_rate", Present: boolp(true)},                 // vitals need a value
		{Name: "temperature", Value: f64(38), Weight: f64(-1)},     // negative weight
		{Name: "bp_systolic", Value: f64(120)},                     // no range, skipped
		{Name: "heart_rate", Value: f64(80)},                       // survives
	})
	require.NoError(t, err)
	assert.Equal(t, 1, dd.Len())
}

func TestMapDomainDuplicateKeepsFirst(t *testing.T) {
	m := newTestMapper(t, MapperOptions{Ranges: testRanges()})

	dd, err := m.MapDomain(clinical.DomainVitals, []clinical.Observation{
		{Name: "heart_rate", Value: f64(120)},
		{Name: "heart_rate", Value: f64(60)},
	})
	require.NoError(t, err)
	require.Equal(t, 1, dd.Len())

	hr, _ := dd.Get("heart_rate")
	assert.InDelta(t, 0.5, hr.Magnitude, 1e-12)
}

func TestMapDomainWeightAndConfidencePassThrough(t *testing.T) {
	m := newTestMapper(t, MapperOptions{})

	dd, err := m.MapDomain(clinical.DomainSubjective, []clinical.Observation{
		{Name: "chest_pain", Present: boolp(true), Weight: f64(2.5), Confidence: f64(0.8)},
		{Name: "dyspnea", Present: boolp(true)},
	})
	require.NoError(t, err)

	weighted, _ := dd.Get("chest_pain")
	assert.Equal(t, 2.5, weighted.Weight)
	assert.Equal(t, 0.8, weighted.Confidence)

	plain, _ := dd.Get("dyspnea")
	assert.Equal(t, 1.0, plain.Weight)
	assert.Equal(t, 1.0, plain.Confidence)
}

func TestMapDomainUnknownDomain(t *testing.T) {
	m := newTestMapper(t, MapperOptions{})
	_, err := m.MapDomain(clinical.Domain("genomics"), nil)
	assert.Equal(t, errors.CodeUnknownDomain, errors.GetCode(err))
}

func TestMapDomainSectorExhaustionAborts(t *testing.T) {
	alloc := NewAllocator(AllocatorConfig{IncrementDegrees: 60})
	m := NewMapper(alloc, MapperOptions{}, nil)

	_, err := m.MapDomain(clinical.DomainImaging, []clinical.Observation{
		{Name: "cxr", Present: boolp(true)},
		{Name: "ct_chest", Present: boolp(true)},
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeSectorExhausted, errors.GetCode(err))
}

func TestMapEncounter(t *testing.T) {
	m := newTestMapper(t, MapperOptions{Ranges: testRanges()})

	enc, err := m.MapEncounter("enc-1", clinical.ObservationSet{
		clinical.DomainSubjective: {
			{Name: "chest_pain", Present: boolp(true)},
		},
		clinical.DomainVitals: {
			{Name: "heart_rate", Value: f64(110)},
		},
		clinical.DomainImaging: {}, // empty slice: no domain entry
	})
	require.NoError(t, err)

	assert.Equal(t, "enc-1", enc.ID)
	assert.Equal(t, 2, enc.VariableCount())
	assert.Nil(t, enc.Domain(clinical.DomainImaging))
	assert.NotNil(t, enc.Domain(clinical.DomainVitals))
	assert.False(t, enc.CreatedAt.IsZero())
}

func TestMapEncounterEmptySet(t *testing.T) {
	m := newTestMapper(t, MapperOptions{})

	enc, err := m.MapEncounter("enc-empty", clinical.ObservationSet{})
	require.NoError(t, err)
	assert.Equal(t, 0, enc.VariableCount())
}

func TestMapProfile(t *testing.T) {
	m := newTestMapper(t, MapperOptions{Ranges: testRanges()})

	p, err := m.MapProfile("I21.9", "Acute myocardial infarction", clinical.ObservationSet{
		clinical.DomainSubjective: {{Name: "chest_pain", Present: boolp(true)}},
		clinical.DomainVitals:     {{Name: "heart_rate", Value: f64(110)}},
	})
	require.NoError(t, err)
	assert.Equal(t, "I21.9", p.DiseaseID)
	assert.NotNil(t, p.Domain(clinical.DomainVitals))

	_, err = m.MapProfile("", "anonymous", nil)
	assert.Equal(t, errors.CodeProfileInvalid, errors.GetCode(err))
}

func TestMapDomainWarnsOnDroppedObservations(t *testing.T) {
	rec := testutil.NewRecordingLogger()
	m := NewMapper(NewAllocator(AllocatorConfig{IncrementDegrees: 1}), MapperOptions{}, rec)

	dd, err := m.MapDomain(clinical.DomainSubjective, []clinical.Observation{
		{Name: "", Present: boolp(true)},
		{Name: "chest_pain", Present: boolp(true)},
		{Name: "chest_pain", Present: boolp(false)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, dd.Len())
	assert.True(t, rec.Has("warn", "dropping malformed observation"))
	assert.True(t, rec.Has("warn", "dropping duplicate observation"))
	assert.Equal(t, 2, rec.Count("warn"))
}

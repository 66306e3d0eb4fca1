package diagnosis

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnovera/diagnovera/internal/domain/complexplane"
	"github.com/diagnovera/diagnovera/pkg/errors"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := NewEngine(opts, nil)
	require.NoError(t, err)
	return e
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(Options{Weights: Weights{Bayesian: -1, Kuramoto: 1, Markov: 1}}, nil)
	assert.Equal(t, errors.CodeInvalidParam, errors.GetCode(err))

	e := newTestEngine(t, Options{})
	assert.Equal(t, DefaultWeights, e.weights)
	assert.Equal(t, 10, e.topK)
	assert.Equal(t, 1, e.workers)
}

func TestScoreDeterminism(t *testing.T) {
	enc := buildEncounter(t,
		buildDomain(t, clinical.DomainSubjective,
			complexplane.Variable{Name: "chest_pain", Angle: 0.01, Magnitude: 1},
			complexplane.Variable{Name: "dyspnea", Angle: 0.02, Magnitude: 1}),
		buildDomain(t, clinical.DomainVitals,
			complexplane.Variable{Name: "heart_rate", Angle: math.Pi / 3, Magnitude: 0.5}),
	)
	profiles := []*complexplane.Profile{
		mirrorProfile(t, enc, "I21.9"),
		buildProfile(t, "J18.9", buildDomain(t, clinical.DomainSubjective,
			complexplane.Variable{Name: "dyspnea", Angle: 0.02, Magnitude: 1})),
		buildProfile(t, "K35.80"),
	}
	e := newTestEngine(t, Options{Workers: 4})

	first, err := e.Score(context.Background(), enc, profiles)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.Score(context.Background(), enc, profiles)
		require.NoError(t, err)
		assert.Equal(t, first.Rankings, again.Rankings)
	}
}

func TestScoreBounds(t *testing.T) {
	enc := buildEncounter(t,
		buildDomain(t, clinical.DomainSubjective,
			complexplane.Variable{Name: "fever", Angle: 0.3, Magnitude: 1}),
		buildDomain(t, clinical.DomainVitals,
			complexplane.Variable{Name: "heart_rate", Angle: math.Pi/3 + 0.2, Magnitude: 0.8}),
	)
	profiles := []*complexplane.Profile{
		mirrorProfile(t, enc, "A"),
		buildProfile(t, "B", buildDomain(t, clinical.DomainSubjective,
			complexplane.Variable{Name: "fever", Angle: 5.9, Magnitude: 0})),
		buildProfile(t, "C"),
	}

	res, err := newTestEngine(t, Options{}).Score(context.Background(), enc, profiles)
	require.NoError(t, err)
	for _, r := range res.Rankings {
		assert.GreaterOrEqual(t, r.Combined, 0.0, r.DiseaseID)
		assert.LessOrEqual(t, r.Combined, 1.0, r.DiseaseID)
		for name, v := range map[string]float64{
			"bayesian": r.Components.Bayesian,
			"kuramoto": r.Components.Kuramoto,
			"markov":   r.Components.Markov,
		} {
			assert.GreaterOrEqual(t, v, 0.0, "%s/%s", r.DiseaseID, name)
			assert.LessOrEqual(t, v, 1.0, "%s/%s", r.DiseaseID, name)
		}
	}
}

func TestScoreEmptyEncounter(t *testing.T) {
	enc := buildEncounter(t)
	profiles := []*complexplane.Profile{
		buildProfile(t, "C", buildDomain(t, clinical.DomainSubjective,
			complexplane.Variable{Name: "fever", Angle: 0.1, Magnitude: 1})),
		buildProfile(t, "A"),
		buildProfile(t, "B"),
	}

	res, err := newTestEngine(t, Options{}).Score(context.Background(), enc, profiles)
	require.NoError(t, err)
	require.Len(t, res.Rankings, 3, "bounded-size response contract: full-length list even with no patient data")

	ids := make([]string, 0, 3)
	for _, r := range res.Rankings {
		assert.Equal(t, 0.0, r.Combined)
		ids = append(ids, r.DiseaseID)
	}
	assert.Equal(t, []string{"A", "B", "C"}, ids, "all-zero ties break by disease id")
}

func TestScorePerfectMatch(t *testing.T) {
	enc := buildEncounter(t,
		buildDomain(t, clinical.DomainSubjective,
			complexplane.Variable{Name: "chest_pain", Angle: 0.01, Magnitude: 1}),
		buildDomain(t, clinical.DomainVitals,
			complexplane.Variable{Name: "heart_rate", Angle: math.Pi / 3, Magnitude: 0.58}),
	)
	self := mirrorProfile(t, enc, "SELF")
	other := buildProfile(t, "OTHER", buildDomain(t, clinical.DomainSubjective,
		complexplane.Variable{Name: "chest_pain", Angle: 0.01, Magnitude: 0.2}))

	res, err := newTestEngine(t, Options{}).Score(context.Background(), enc, []*complexplane.Profile{other, self})
	require.NoError(t, err)

	top := res.Rankings[0]
	require.Equal(t, "SELF", top.DiseaseID)
	assert.Equal(t, 1.0, top.Components.Bayesian)
	assert.Equal(t, 1.0, top.Components.Kuramoto)
	assert.Equal(t, 2, top.MatchedVariables)
	assert.Equal(t, 2, top.PatientVariables)
}

func TestScoreTruncation(t *testing.T) {
	enc := buildEncounter(t, buildDomain(t, clinical.DomainSubjective,
		complexplane.Variable{Name: "fever", Angle: 0.1, Magnitude: 1}))

	profiles := make([]*complexplane.Profile, 0, 25)
	for i := 0; i < 25; i++ {
		profiles = append(profiles, buildProfile(t, fmt.Sprintf("D%02d", i)))
	}

	e := newTestEngine(t, Options{TopK: 10})

	res, err := e.Score(context.Background(), enc, profiles)
	require.NoError(t, err)
	assert.Len(t, res.Rankings, 10)
	assert.Equal(t, 25, res.Candidates)
	assert.False(t, res.Partial)

	res, err = e.Score(context.Background(), enc, profiles[:4])
	require.NoError(t, err)
	assert.Len(t, res.Rankings, 4, "output is exactly min(K, candidates)")
}

func TestScoreEmptyCandidateSet(t *testing.T) {
	enc := buildEncounter(t, buildDomain(t, clinical.DomainSubjective,
		complexplane.Variable{Name: "fever", Angle: 0.1, Magnitude: 1}))

	res, err := newTestEngine(t, Options{}).Score(context.Background(), enc, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Rankings)
	assert.False(t, res.Partial)
}

func TestScoreSingleVitalScenario(t *testing.T) {
	// heart_rate 110 in range (40, 200) normalizes to 0.5.
	enc := buildEncounter(t, buildDomain(t, clinical.DomainVitals,
		complexplane.Variable{Name: "heart_rate", Angle: math.Pi / 3, Magnitude: 0.5}))
	profile := buildProfile(t, "I21.9", buildDomain(t, clinical.DomainVitals,
		complexplane.Variable{Name: "heart_rate", Angle: math.Pi / 3, Magnitude: 0.58}))

	res, err := newTestEngine(t, Options{}).Score(context.Background(), enc, []*complexplane.Profile{profile})
	require.NoError(t, err)
	require.Len(t, res.Rankings, 1)

	r := res.Rankings[0]
	assert.InDelta(t, 0.96, r.Components.Bayesian, 1e-12)
	assert.InDelta(t, 1.0, r.Components.Kuramoto, 1e-12)
	assert.Equal(t, 0.0, r.Components.Markov)
	assert.Greater(t, r.Combined, 0.0)
}

func TestScoreIdenticalProfilesTieBreak(t *testing.T) {
	enc := buildEncounter(t, buildDomain(t, clinical.DomainSubjective,
		complexplane.Variable{Name: "fever", Angle: 0.1, Magnitude: 1}))

	data := func() *complexplane.DomainData {
		return buildDomain(t, clinical.DomainSubjective,
			complexplane.Variable{Name: "fever", Angle: 0.1, Magnitude: 1})
	}
	profiles := []*complexplane.Profile{
		buildProfile(t, "B99.9", data()),
		buildProfile(t, "A41.9", data()),
	}

	res, err := newTestEngine(t, Options{}).Score(context.Background(), enc, profiles)
	require.NoError(t, err)
	require.Len(t, res.Rankings, 2)
	assert.Equal(t, res.Rankings[0].Combined, res.Rankings[1].Combined)
	assert.Equal(t, "A41.9", res.Rankings[0].DiseaseID)
	assert.Equal(t, "B99.9", res.Rankings[1].DiseaseID)
}

func TestScoreWithPriors(t *testing.T) {
	enc := buildEncounter(t, buildDomain(t, clinical.DomainSubjective,
		complexplane.Variable{Name: "fever", Angle: 0.1, Magnitude: 1}))

	data := func() *complexplane.DomainData {
		return buildDomain(t, clinical.DomainSubjective,
			complexplane.Variable{Name: "fever", Angle: 0.1, Magnitude: 1})
	}
	profiles := []*complexplane.Profile{
		buildProfile(t, "A", data()),
		buildProfile(t, "B", data()),
	}
	e := newTestEngine(t, Options{})

	res, err := e.ScoreWithPriors(context.Background(), enc, profiles, map[string]float64{"B": 0.9})
	require.NoError(t, err)

	var sum float64
	byID := map[string]clinical.RankedDiagnosis{}
	for _, r := range res.Rankings {
		sum += r.Posterior
		byID[r.DiseaseID] = r
	}
	assert.InDelta(t, 1.0, sum, 1e-12, "posteriors normalize to 1")
	assert.Greater(t, byID["B"].Posterior, byID["A"].Posterior, "external prior shifts the posterior")
	// The prior does not leak into the ensemble ranking itself.
	assert.Equal(t, byID["A"].Combined, byID["B"].Combined)
}

func TestScoreNormalizesWeightVector(t *testing.T) {
	enc := buildEncounter(t, buildDomain(t, clinical.DomainVitals,
		complexplane.Variable{Name: "heart_rate", Angle: math.Pi / 3, Magnitude: 0.5}))
	self := mirrorProfile(t, enc, "SELF")

	// The alternate two-term variant, un-normalized on purpose.
	e := newTestEngine(t, Options{Weights: Weights{Bayesian: 7, Kuramoto: 3}})

	res, err := e.Score(context.Background(), enc, []*complexplane.Profile{self})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Rankings[0].Combined, 1e-12)
}

func TestScoreExpiredContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	enc := buildEncounter(t)
	_, err := newTestEngine(t, Options{}).Score(ctx, enc, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeScoringFailed, errors.GetCode(err))
}

func TestScoreNilEncounter(t *testing.T) {
	_, err := newTestEngine(t, Options{}).Score(context.Background(), nil, nil)
	assert.Equal(t, errors.CodeInvalidParam, errors.GetCode(err))
}

func TestScoreDeadlineConfigured(t *testing.T) {
	enc := buildEncounter(t, buildDomain(t, clinical.DomainSubjective,
		complexplane.Variable{Name: "fever", Angle: 0.1, Magnitude: 1}))
	profiles := []*complexplane.Profile{mirrorProfile(t, enc, "A")}

	e := newTestEngine(t, Options{Deadline: time.Second, Workers: 2})
	res, err := e.Score(context.Background(), enc, profiles)
	require.NoError(t, err)
	assert.False(t, res.Partial)
	assert.Equal(t, 1, res.Scored)
}

package diagnosis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/diagnovera/diagnovera/internal/domain/complexplane"
	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/logging"
	"github.com/diagnovera/diagnovera/pkg/errors"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

// Weights is the ensemble weight vector.  Weights are normalized by their
// sum before combining, so (0.4, 0.3, 0.3) and (4, 3, 3) are equivalent.
type Weights struct {
	Bayesian float64
	Kuramoto float64
	Markov   float64
}

// DefaultWeights is the standard three-term ensemble.
var DefaultWeights = Weights{Bayesian: 0.4, Kuramoto: 0.3, Markov: 0.3}

func (w Weights) sum() float64 {
	return w.Bayesian + w.Kuramoto + w.Markov
}

// Options configures one Engine instance.
type Options struct {
	Weights Weights

	// TopK bounds the ranked output length.  Non-positive → 10.
	TopK int

	// Workers is the scoring pool size.  Non-positive → 1.
	Workers int

	// Deadline bounds one scoring request.  Candidates not scored when it
	// expires are omitted from the output (partial result, not an error).
	// Zero means no deadline.
	Deadline time.Duration
}

// Engine scores a patient encounter against candidate reference profiles
// and produces the ranked differential.  Scoring is pure computation over
// immutable inputs, so one Engine serves concurrent requests.
type Engine struct {
	weights  Weights
	topK     int
	workers  int
	deadline time.Duration
	logger   logging.Logger
}

// NewEngine validates opts and constructs an Engine.
func NewEngine(opts Options, log logging.Logger) (*Engine, error) {
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights
	}
	if opts.Weights.Bayesian < 0 || opts.Weights.Kuramoto < 0 || opts.Weights.Markov < 0 {
		return nil, errors.InvalidParam("ensemble weights must be non-negative")
	}
	if opts.Weights.sum() == 0 {
		return nil, errors.InvalidParam("ensemble weights must not all be zero")
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Engine{
		weights:  opts.Weights,
		topK:     opts.TopK,
		workers:  opts.Workers,
		deadline: opts.Deadline,
		logger:   log.Named("engine"),
	}, nil
}

// Result is one scoring request's outcome.
type Result struct {
	Rankings []clinical.RankedDiagnosis

	// Partial is true when the deadline expired before every candidate was
	// scored; Rankings then covers only the Scored candidates.
	Partial    bool
	Scored     int
	Candidates int
	Elapsed    time.Duration
}

// Score ranks the candidate profiles against the encounter.  An empty
// candidate set yields an empty ranking; an empty encounter yields a
// full-length all-zero ranking ordered by the tie-break rule.  The only
// error conditions are a nil encounter and pre-expired context; sparse or
// malformed clinical data never fails a request.
func (e *Engine) Score(ctx context.Context, enc *complexplane.Encounter, profiles []*complexplane.Profile) (*Result, error) {
	return e.ScoreWithPriors(ctx, enc, profiles, nil)
}

// ScoreWithPriors is Score with an external prior distribution keyed by
// disease id.  Candidates absent from priors receive the uniform prior 1/N.
// A nil map means uniform throughout.
func (e *Engine) ScoreWithPriors(ctx context.Context, enc *complexplane.Encounter, profiles []*complexplane.Profile, priors map[string]float64) (*Result, error) {
	if enc == nil {
		return nil, errors.InvalidParam("encounter is nil")
	}
	start := time.Now()

	if e.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.deadline)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeScoringFailed, "scoring context expired before start")
	}

	scored := e.scoreAll(ctx, enc, profiles)

	rankings := e.rank(scored, priors, enc.VariableCount())
	if len(rankings) > e.topK {
		rankings = rankings[:e.topK]
	}

	res := &Result{
		Rankings:   rankings,
		Partial:    len(scored) < len(profiles),
		Scored:     len(scored),
		Candidates: len(profiles),
		Elapsed:    time.Since(start),
	}
	if res.Partial {
		e.logger.Warn("scoring deadline expired, returning partial ranking",
			logging.Int("scored", res.Scored),
			logging.Int("candidates", res.Candidates),
			logging.Duration("elapsed", res.Elapsed),
		)
	}
	return res, nil
}

// candidateScore is one profile's component scores before ranking.
type candidateScore struct {
	profile  *complexplane.Profile
	bayesian float64
	kuramoto float64
	markov   float64
	matched  int
}

// scoreAll fans the candidates out over the worker pool and gathers whatever
// completes before the context is done.
func (e *Engine) scoreAll(ctx context.Context, enc *complexplane.Encounter, profiles []*complexplane.Profile) []candidateScore {
	if len(profiles) == 0 {
		return nil
	}

	jobs := make(chan *complexplane.Profile)
	results := make(chan candidateScore, len(profiles))

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				results <- e.scoreOne(enc, p)
			}
		}()
	}

dispatch:
	for _, p := range profiles {
		if p == nil {
			continue
		}
		select {
		case jobs <- p:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)

	wg.Wait()
	close(results)

	scored := make([]candidateScore, 0, len(profiles))
	for cs := range results {
		scored = append(scored, cs)
	}
	return scored
}

// scoreOne computes the three component measures and their matched-pair
// count for a single candidate.
func (e *Engine) scoreOne(enc *complexplane.Encounter, profile *complexplane.Profile) candidateScore {
	ms := buildMatchSet(enc, profile)
	return candidateScore{
		profile:  profile,
		bayesian: bayesianLikelihood(ms),
		kuramoto: kuramotoOrder(ms),
		markov:   markovChain(ms),
		matched:  ms.total,
	}
}

// rank combines component scores, attaches posteriors, and sorts.
func (e *Engine) rank(scored []candidateScore, priors map[string]float64, patientVars int) []clinical.RankedDiagnosis {
	if len(scored) == 0 {
		return []clinical.RankedDiagnosis{}
	}

	wSum := e.weights.sum()
	uniform := 1.0 / float64(len(scored))

	evidence := make([]float64, len(scored))
	for i, cs := range scored {
		prior := uniform
		if p, ok := priors[cs.profile.DiseaseID]; ok && p > 0 {
			prior = p
		}
		evidence[i] = prior * cs.bayesian
	}
	posteriors := normalizePosteriors(evidence)

	out := make([]clinical.RankedDiagnosis, 0, len(scored))
	for i, cs := range scored {
		combined := (e.weights.Bayesian*cs.bayesian +
			e.weights.Kuramoto*cs.kuramoto +
			e.weights.Markov*cs.markov) / wSum
		out = append(out, clinical.RankedDiagnosis{
			DiseaseID:   cs.profile.DiseaseID,
			Description: cs.profile.Description,
			Combined:    combined,
			Components: clinical.ComponentScores{
				Bayesian: cs.bayesian,
				Kuramoto: cs.kuramoto,
				Markov:   cs.markov,
			},
			Posterior:        posteriors[i],
			MatchedVariables: cs.matched,
			PatientVariables: patientVars,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Combined != out[j].Combined {
			return out[i].Combined > out[j].Combined
		}
		if out[i].Components.Bayesian != out[j].Components.Bayesian {
			return out[i].Components.Bayesian > out[j].Components.Bayesian
		}
		return out[i].DiseaseID < out[j].DiseaseID
	})
	return out
}

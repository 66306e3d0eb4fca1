// Package diagnosis provides the application-level service for diagnosis
// requests.  It mediates between the HTTP/CLI handlers and the similarity
// engine: observation mapping, candidate loading, scoring, persistence, and
// event publication.
package diagnosis

import (
	"context"
	"time"

	"github.com/diagnovera/diagnovera/internal/domain/complexplane"
	domaindiag "github.com/diagnovera/diagnovera/internal/domain/diagnosis"
	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/logging"
	"github.com/diagnovera/diagnovera/pkg/errors"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
	"github.com/diagnovera/diagnovera/pkg/types/common"
)

// ProfileSource supplies the candidate reference profiles for scoring.
// The library service implements it with cache-first loading.
type ProfileSource interface {
	ActiveProfiles(ctx context.Context) ([]*complexplane.Profile, error)
}

// DiagnosisCompletedEvent is emitted after every successful scoring run.
type DiagnosisCompletedEvent struct {
	DiagnosisID string                     `json:"diagnosis_id"`
	EncounterID string                     `json:"encounter_id"`
	Rankings    []clinical.RankedDiagnosis `json:"rankings"`
	Partial     bool                       `json:"partial"`
	CompletedAt time.Time                  `json:"completed_at"`
}

// EventPublisher pushes completed-diagnosis events to downstream consumers.
type EventPublisher interface {
	PublishDiagnosisCompleted(ctx context.Context, event *DiagnosisCompletedEvent) error
}

// Service defines the diagnosis application operations.
type Service interface {
	Diagnose(ctx context.Context, input *DiagnoseInput) (*DiagnoseResult, error)
	GetResult(ctx context.Context, id string) (*DiagnoseResult, error)
	ListByEncounter(ctx context.Context, encounterID string) ([]*DiagnoseResult, error)
}

// DiagnoseInput is one diagnosis request.
type DiagnoseInput struct {
	EncounterID  string
	Observations clinical.ObservationSet
	// Prior optionally biases the posterior per disease id; nil is uniform.
	Prior map[string]float64
	// TopK optionally tightens the configured cutoff for this request; it
	// can never widen it.
	TopK int
}

// DiagnoseResult is the ranked differential returned to callers.
type DiagnoseResult struct {
	ID          string                     `json:"id"`
	EncounterID string                     `json:"encounter_id"`
	Rankings    []clinical.RankedDiagnosis `json:"rankings"`
	Partial     bool                       `json:"partial"`
	Scored      int                        `json:"scored"`
	Candidates  int                        `json:"candidates"`
	ElapsedMS   int64                      `json:"elapsed_ms"`
	CreatedAt   time.Time                  `json:"created_at"`
}

// Deps carries the service's collaborators.
type Deps struct {
	Mapper    *complexplane.Mapper
	Engine    *domaindiag.Engine
	Profiles  ProfileSource
	Results   domaindiag.DiagnosisRepository
	Publisher EventPublisher
	Logger    logging.Logger
}

type serviceImpl struct {
	deps Deps
}

// NewService creates the diagnosis application service.  Results and
// Publisher may be nil, in which case persistence and event publication are
// skipped; the CLI runs this way.
func NewService(deps Deps) (Service, error) {
	if deps.Mapper == nil || deps.Engine == nil || deps.Profiles == nil {
		return nil, errors.InvalidParam("diagnosis service requires mapper, engine, and profile source")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	deps.Logger = deps.Logger.Named("diagnosis")
	return &serviceImpl{deps: deps}, nil
}

func (s *serviceImpl) Diagnose(ctx context.Context, input *DiagnoseInput) (*DiagnoseResult, error) {
	if input == nil {
		return nil, errors.New(errors.CodeEncounterInvalid, "diagnosis input is nil")
	}
	encounterID := input.EncounterID
	if encounterID == "" {
		encounterID = common.NewID().String()
	}

	enc, err := s.deps.Mapper.MapEncounter(encounterID, input.Observations)
	if err != nil {
		return nil, err
	}

	profiles, err := s.deps.Profiles.ActiveProfiles(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeScoringFailed, "failed to load reference library")
	}

	scored, err := s.deps.Engine.ScoreWithPriors(ctx, enc, profiles, input.Prior)
	if err != nil {
		return nil, err
	}

	rankings := scored.Rankings
	if input.TopK > 0 && input.TopK < len(rankings) {
		rankings = rankings[:input.TopK]
	}

	rec := &domaindiag.DiagnosisRecord{
		ID:          common.NewID(),
		EncounterID: encounterID,
		Rankings:    rankings,
		Partial:     scored.Partial,
		Scored:      scored.Scored,
		Candidates:  scored.Candidates,
		ElapsedMS:   scored.Elapsed.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}

	// Persistence and publication are best-effort: the caller always gets
	// its ranked list back once scoring succeeded.
	if s.deps.Results != nil {
		if err := s.deps.Results.Save(ctx, rec); err != nil {
			s.deps.Logger.Error("failed to persist diagnosis result",
				logging.String("diagnosis_id", rec.ID.String()),
				logging.Err(err),
			)
		}
	}
	if s.deps.Publisher != nil {
		event := &DiagnosisCompletedEvent{
			DiagnosisID: rec.ID.String(),
			EncounterID: encounterID,
			Rankings:    rankings,
			Partial:     scored.Partial,
			CompletedAt: rec.CreatedAt,
		}
		if err := s.deps.Publisher.PublishDiagnosisCompleted(ctx, event); err != nil {
			s.deps.Logger.Error("failed to publish diagnosis event",
				logging.String("diagnosis_id", rec.ID.String()),
				logging.Err(err),
			)
		}
	}

	s.deps.Logger.Info("diagnosis completed",
		logging.String("encounter_id", encounterID),
		logging.Int("candidates", scored.Candidates),
		logging.Int("rankings", len(rankings)),
		logging.Bool("partial", scored.Partial),
		logging.Duration("elapsed", scored.Elapsed),
	)

	return recordToResult(rec), nil
}

func (s *serviceImpl) GetResult(ctx context.Context, id string) (*DiagnoseResult, error) {
	if s.deps.Results == nil {
		return nil, errors.New(errors.CodeNotFound, "diagnosis persistence is not configured")
	}
	parsed, err := common.ParseID(id)
	if err != nil {
		return nil, errors.InvalidParam("malformed diagnosis id").WithCause(err)
	}
	rec, err := s.deps.Results.FindByID(ctx, parsed)
	if err != nil {
		return nil, err
	}
	return recordToResult(rec), nil
}

func (s *serviceImpl) ListByEncounter(ctx context.Context, encounterID string) ([]*DiagnoseResult, error) {
	if encounterID == "" {
		return nil, errors.InvalidParam("encounter id is required")
	}
	if s.deps.Results == nil {
		return nil, errors.New(errors.CodeNotFound, "diagnosis persistence is not configured")
	}
	recs, err := s.deps.Results.FindByEncounterID(ctx, encounterID)
	if err != nil {
		return nil, err
	}
	out := make([]*DiagnoseResult, len(recs))
	for i, rec := range recs {
		out[i] = recordToResult(rec)
	}
	return out, nil
}

func recordToResult(rec *domaindiag.DiagnosisRecord) *DiagnoseResult {
	return &DiagnoseResult{
		ID:          rec.ID.String(),
		EncounterID: rec.EncounterID,
		Rankings:    rec.Rankings,
		Partial:     rec.Partial,
		Scored:      rec.Scored,
		Candidates:  rec.Candidates,
		ElapsedMS:   rec.ElapsedMS,
		CreatedAt:   rec.CreatedAt,
	}
}

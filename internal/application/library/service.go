// Package library provides the application-level service for the disease
// reference library: building profiles from extracted observations,
// upserting pre-computed profile records, and serving the candidate set to
// the diagnosis service with cache-first loading.
package library

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/diagnovera/diagnovera/internal/domain/complexplane"
	domaindiag "github.com/diagnovera/diagnovera/internal/domain/diagnosis"
	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/logging"
	"github.com/diagnovera/diagnovera/pkg/errors"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

// Cache stores the full reference-library snapshot.  A miss is reported as
// a not-found error, not a zero-length slice, so an intentionally empty
// library remains cacheable.
type Cache interface {
	GetLibrary(ctx context.Context) ([]clinical.ProfileRecord, error)
	SetLibrary(ctx context.Context, recs []clinical.ProfileRecord) error
	Invalidate(ctx context.Context) error
}

// EventPublisher announces library mutations to downstream consumers.
type EventPublisher interface {
	PublishProfileUpdated(ctx context.Context, event *ProfileUpdatedEvent) error
}

// ProfileUpdatedEvent is emitted after a profile is built, upserted, or
// deleted.
type ProfileUpdatedEvent struct {
	DiseaseID string    `json:"disease_id"`
	Action    string    `json:"action"` // built | upserted | deleted
	UpdatedAt time.Time `json:"updated_at"`
}

// Service defines the reference-library operations.
type Service interface {
	// BuildProfile maps raw extracted observations into a reference profile
	// and persists it, replacing any prior profile for the disease.
	BuildProfile(ctx context.Context, input *BuildInput) (*clinical.ProfileRecord, error)

	// UpsertProfile persists a pre-computed profile record.
	UpsertProfile(ctx context.Context, rec clinical.ProfileRecord) error

	GetProfile(ctx context.Context, diseaseID string) (*clinical.ProfileRecord, error)
	ListProfiles(ctx context.Context, filter domaindiag.ProfileListFilter) (*domaindiag.ProfileListResult, error)
	DeleteProfile(ctx context.Context, diseaseID string) error

	// ActiveProfiles returns the full candidate set as domain aggregates,
	// cache-first.  Implements the diagnosis service's ProfileSource port.
	ActiveProfiles(ctx context.Context) ([]*complexplane.Profile, error)
}

// BuildInput is one profile-build request, typically produced by the
// literature extraction pipeline.
type BuildInput struct {
	DiseaseID    string
	Description  string
	Category     string
	Sources      []string
	Confidence   float64
	Observations clinical.ObservationSet
}

// Deps carries the service's collaborators.  Cache and Publisher may be
// nil; the service then loads straight from the repository and skips event
// publication.
type Deps struct {
	Repo      domaindiag.ProfileRepository
	Cache     Cache
	Mapper    *complexplane.Mapper
	Publisher EventPublisher
	Logger    logging.Logger
}

type serviceImpl struct {
	deps Deps
	sf   singleflight.Group
}

// NewService creates the library application service.
func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil || deps.Mapper == nil {
		return nil, errors.InvalidParam("library service requires repository and mapper")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	deps.Logger = deps.Logger.Named("library")
	return &serviceImpl{deps: deps}, nil
}

func (s *serviceImpl) BuildProfile(ctx context.Context, input *BuildInput) (*clinical.ProfileRecord, error) {
	if input == nil || input.DiseaseID == "" {
		return nil, errors.New(errors.CodeProfileInvalid, "build input has no disease id")
	}

	profile, err := s.deps.Mapper.MapProfile(input.DiseaseID, input.Description, input.Observations)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeLibraryBuildFailed, "failed to map profile observations")
	}
	profile.Category = input.Category
	profile.Sources = append([]string(nil), input.Sources...)
	profile.Confidence = input.Confidence

	rec := profile.Record()
	if err := s.deps.Repo.Save(ctx, rec); err != nil {
		return nil, errors.Wrap(err, errors.CodeLibraryBuildFailed, "failed to persist profile")
	}

	s.afterMutation(ctx, input.DiseaseID, "built")
	s.deps.Logger.Info("reference profile built",
		logging.String("disease_id", input.DiseaseID),
		logging.Int("variables", countVariables(rec)),
	)
	return &rec, nil
}

func (s *serviceImpl) UpsertProfile(ctx context.Context, rec clinical.ProfileRecord) error {
	// Round-trip through the aggregate to validate and normalize the record
	// before it reaches storage.
	profile, err := complexplane.ProfileFromRecord(rec)
	if err != nil {
		return err
	}
	normalized := profile.Record()

	if err := s.deps.Repo.Save(ctx, normalized); err != nil {
		return err
	}
	s.afterMutation(ctx, rec.DiseaseID, "upserted")
	return nil
}

func (s *serviceImpl) GetProfile(ctx context.Context, diseaseID string) (*clinical.ProfileRecord, error) {
	if diseaseID == "" {
		return nil, errors.InvalidParam("disease id is required")
	}
	rec, err := s.deps.Repo.FindByDiseaseID(ctx, diseaseID)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *serviceImpl) ListProfiles(ctx context.Context, filter domaindiag.ProfileListFilter) (*domaindiag.ProfileListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.deps.Repo.List(ctx, filter)
}

func (s *serviceImpl) DeleteProfile(ctx context.Context, diseaseID string) error {
	if diseaseID == "" {
		return errors.InvalidParam("disease id is required")
	}
	if err := s.deps.Repo.Delete(ctx, diseaseID); err != nil {
		return err
	}
	s.afterMutation(ctx, diseaseID, "deleted")
	return nil
}

func (s *serviceImpl) ActiveProfiles(ctx context.Context) ([]*complexplane.Profile, error) {
	recs, err := s.loadRecords(ctx)
	if err != nil {
		return nil, err
	}

	profiles := make([]*complexplane.Profile, 0, len(recs))
	for _, rec := range recs {
		p, err := complexplane.ProfileFromRecord(rec)
		if err != nil {
			// A corrupt stored record degrades to "not a candidate".
			s.deps.Logger.Warn("skipping invalid stored profile",
				logging.String("disease_id", rec.DiseaseID),
				logging.Err(err),
			)
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// loadRecords is cache-first with dogpile suppression: concurrent misses
// share one repository read.
func (s *serviceImpl) loadRecords(ctx context.Context) ([]clinical.ProfileRecord, error) {
	if s.deps.Cache != nil {
		recs, err := s.deps.Cache.GetLibrary(ctx)
		if err == nil {
			return recs, nil
		}
		if !errors.IsNotFound(err) {
			s.deps.Logger.Warn("library cache read failed, falling back to repository",
				logging.Err(err))
		}
	}

	v, err, _ := s.sf.Do("library", func() (interface{}, error) {
		recs, err := s.deps.Repo.FindAll(ctx)
		if err != nil {
			return nil, err
		}
		if s.deps.Cache != nil {
			if err := s.deps.Cache.SetLibrary(ctx, recs); err != nil {
				s.deps.Logger.Warn("library cache write failed", logging.Err(err))
			}
		}
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]clinical.ProfileRecord), nil
}

func (s *serviceImpl) afterMutation(ctx context.Context, diseaseID, action string) {
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Invalidate(ctx); err != nil {
			s.deps.Logger.Warn("library cache invalidation failed", logging.Err(err))
		}
	}
	if s.deps.Publisher != nil {
		event := &ProfileUpdatedEvent{
			DiseaseID: diseaseID,
			Action:    action,
			UpdatedAt: time.Now().UTC(),
		}
		if err := s.deps.Publisher.PublishProfileUpdated(ctx, event); err != nil {
			s.deps.Logger.Error("failed to publish library event",
				logging.String("disease_id", diseaseID),
				logging.Err(err),
			)
		}
	}
}

func countVariables(rec clinical.ProfileRecord) int {
	n := 0
	for _, vars := range rec.Domains {
		n += len(vars)
	}
	return n
}

package diagnosis

import (
	"context"
	"time"

	"github.com/diagnovera/diagnovera/pkg/types/clinical"
	"github.com/diagnovera/diagnovera/pkg/types/common"
)

// ProfileListFilter narrows a reference-library listing.
type ProfileListFilter struct {
	Category string
	// Query matches against disease id and description, case-insensitive.
	Query  string
	Offset int
	Limit  int
}

// ProfileListResult is one page of reference profiles.
type ProfileListResult struct {
	Profiles []clinical.ProfileRecord
	Total    int64
}

// ProfileRepository persists the reference library.  Implementations store
// the wire-level ProfileRecord; the domain aggregate is rebuilt on read via
// complexplane.ProfileFromRecord.
type ProfileRepository interface {
	Save(ctx context.Context, rec clinical.ProfileRecord) error
	FindByDiseaseID(ctx context.Context, diseaseID string) (clinical.ProfileRecord, error)
	FindAll(ctx context.Context) ([]clinical.ProfileRecord, error)
	List(ctx context.Context, filter ProfileListFilter) (*ProfileListResult, error)
	Delete(ctx context.Context, diseaseID string) error
	Count(ctx context.Context) (int64, error)
}

// DiagnosisRecord is one completed diagnosis request as persisted.
type DiagnosisRecord struct {
	ID          common.ID                  `json:"id"`
	EncounterID string                     `json:"encounter_id"`
	Rankings    []clinical.RankedDiagnosis `json:"rankings"`
	Partial     bool                       `json:"partial"`
	Scored      int                        `json:"scored"`
	Candidates  int                        `json:"candidates"`
	ElapsedMS   int64                      `json:"elapsed_ms"`
	CreatedAt   time.Time                  `json:"created_at"`
}

// DiagnosisRepository persists completed diagnosis results for later audit
// and retrieval.
type DiagnosisRepository interface {
	Save(ctx context.Context, rec *DiagnosisRecord) error
	FindByID(ctx context.Context, id common.ID) (*DiagnosisRecord, error)
	FindByEncounterID(ctx context.Context, encounterID string) ([]*DiagnosisRecord, error)
}

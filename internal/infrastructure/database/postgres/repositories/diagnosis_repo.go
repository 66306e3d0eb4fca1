package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnovera/diagnovera/internal/domain/diagnosis"
	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/logging"
	"github.com/diagnovera/diagnovera/pkg/errors"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
	"github.com/diagnovera/diagnovera/pkg/types/common"
)

// DiagnosisRepo is the PostgreSQL diagnosis-result repository.
type DiagnosisRepo struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewDiagnosisRepo creates a DiagnosisRepo backed by pool.
func NewDiagnosisRepo(pool *pgxpool.Pool, log logging.Logger) *DiagnosisRepo {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &DiagnosisRepo{pool: pool, logger: log.Named("diagnosis_repo")}
}

var _ diagnosis.DiagnosisRepository = (*DiagnosisRepo)(nil)

func (r *DiagnosisRepo) Save(ctx context.Context, rec *diagnosis.DiagnosisRecord) error {
	if rec == nil || rec.ID == "" {
		return errors.InvalidParam("diagnosis record requires an id")
	}
	rankings, err := json.Marshal(rec.Rankings)
	if err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "failed to encode rankings")
	}

	const q = `
		INSERT INTO diagnosis_results
			(id, encounter_id, rankings, partial, scored, candidates, elapsed_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := r.pool.Exec(ctx, q,
		rec.ID.String(), rec.EncounterID, rankings,
		rec.Partial, rec.Scored, rec.Candidates, rec.ElapsedMS, rec.CreatedAt,
	); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to save diagnosis result")
	}
	return nil
}

func (r *DiagnosisRepo) FindByID(ctx context.Context, id common.ID) (*diagnosis.DiagnosisRecord, error) {
	const q = `
		SELECT id, encounter_id, rankings, partial, scored, candidates, elapsed_ms, created_at
		FROM diagnosis_results
		WHERE id = $1`

	rec, err := scanDiagnosis(r.pool.QueryRow(ctx, q, id.String()))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Newf(errors.CodeEncounterNotFound, "diagnosis %q not found", id)
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load diagnosis result")
	}
	return rec, nil
}

func (r *DiagnosisRepo) FindByEncounterID(ctx context.Context, encounterID string) ([]*diagnosis.DiagnosisRecord, error) {
	const q = `
		SELECT id, encounter_id, rankings, partial, scored, candidates, elapsed_ms, created_at
		FROM diagnosis_results
		WHERE encounter_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, encounterID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to list diagnosis results")
	}
	defer rows.Close()

	recs := make([]*diagnosis.DiagnosisRecord, 0, 8)
	for rows.Next() {
		rec, err := scanDiagnosis(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan diagnosis result")
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to iterate diagnosis results")
	}
	return recs, nil
}

func scanDiagnosis(row pgx.Row) (*diagnosis.DiagnosisRecord, error) {
	var (
		rec      diagnosis.DiagnosisRecord
		id       string
		rankings []byte
	)
	if err := row.Scan(&id, &rec.EncounterID, &rankings,
		&rec.Partial, &rec.Scored, &rec.Candidates, &rec.ElapsedMS, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.ID = common.ID(id)
	if len(rankings) > 0 {
		rec.Rankings = []clinical.RankedDiagnosis{}
		if err := json.Unmarshal(rankings, &rec.Rankings); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

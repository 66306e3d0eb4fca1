// Package repositories contains the PostgreSQL implementations of the
// domain repository interfaces.
package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnovera/diagnovera/internal/domain/diagnosis"
	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/logging"
	"github.com/diagnovera/diagnovera/pkg/errors"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

// ProfileRepo is the PostgreSQL reference-library repository.  The
// per-domain variable lists are stored as one JSONB document: profiles are
// written whole and read whole, never queried per-variable.
type ProfileRepo struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewProfileRepo creates a ProfileRepo backed by pool.
func NewProfileRepo(pool *pgxpool.Pool, log logging.Logger) *ProfileRepo {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ProfileRepo{pool: pool, logger: log.Named("profile_repo")}
}

var _ diagnosis.ProfileRepository = (*ProfileRepo)(nil)

func (r *ProfileRepo) Save(ctx context.Context, rec clinical.ProfileRecord) error {
	if rec.DiseaseID == "" {
		return errors.New(errors.CodeProfileInvalid, "profile record has no disease id")
	}
	domains, err := json.Marshal(rec.Domains)
	if err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "failed to encode profile domains")
	}
	sources, err := json.Marshal(rec.Sources)
	if err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "failed to encode profile sources")
	}

	const q = `
		INSERT INTO reference_profiles
			(disease_id, description, category, sources, confidence, domains, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (disease_id) DO UPDATE SET
			description = EXCLUDED.description,
			category    = EXCLUDED.category,
			sources     = EXCLUDED.sources,
			confidence  = EXCLUDED.confidence,
			domains     = EXCLUDED.domains,
			updated_at  = now()`

	if _, err := r.pool.Exec(ctx, q,
		rec.DiseaseID, rec.Description, rec.Category, sources, rec.Confidence, domains,
	); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to save reference profile")
	}
	return nil
}

func (r *ProfileRepo) FindByDiseaseID(ctx context.Context, diseaseID string) (clinical.ProfileRecord, error) {
	const q = `
		SELECT disease_id, description, category, sources, confidence, domains
		FROM reference_profiles
		WHERE disease_id = $1`

	rec, err := scanProfile(r.pool.QueryRow(ctx, q, diseaseID))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return clinical.ProfileRecord{}, errors.Newf(errors.CodeProfileNotFound,
				"reference profile %q not found", diseaseID)
		}
		return clinical.ProfileRecord{}, errors.Wrap(err, errors.CodeDatabaseError,
			"failed to load reference profile")
	}
	return rec, nil
}

func (r *ProfileRepo) FindAll(ctx context.Context) ([]clinical.ProfileRecord, error) {
	const q = `
		SELECT disease_id, description, category, sources, confidence, domains
		FROM reference_profiles
		ORDER BY disease_id`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load reference library")
	}
	defer rows.Close()

	recs := make([]clinical.ProfileRecord, 0, 128)
	for rows.Next() {
		rec, err := scanProfile(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan reference profile")
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to iterate reference library")
	}
	return recs, nil
}

func (r *ProfileRepo) List(ctx context.Context, filter diagnosis.ProfileListFilter) (*diagnosis.ProfileListResult, error) {
	where := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)

	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		where = append(where, fmt.Sprintf("(disease_id ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM reference_profiles"+clause, args...).Scan(&total); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to count reference profiles")
	}

	args = append(args, filter.Limit)
	limitPos := len(args)
	args = append(args, filter.Offset)
	offsetPos := len(args)

	q := fmt.Sprintf(`
		SELECT disease_id, description, category, sources, confidence, domains
		FROM reference_profiles%s
		ORDER BY disease_id
		LIMIT $%d OFFSET $%d`, clause, limitPos, offsetPos)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to list reference profiles")
	}
	defer rows.Close()

	recs := make([]clinical.ProfileRecord, 0, filter.Limit)
	for rows.Next() {
		rec, err := scanProfile(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan reference profile")
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to iterate reference profiles")
	}

	return &diagnosis.ProfileListResult{Profiles: recs, Total: total}, nil
}

func (r *ProfileRepo) Delete(ctx context.Context, diseaseID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reference_profiles WHERE disease_id = $1`, diseaseID)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to delete reference profile")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.CodeProfileNotFound, "reference profile %q not found", diseaseID)
	}
	return nil
}

func (r *ProfileRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM reference_profiles`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to count reference profiles")
	}
	return n, nil
}

func scanProfile(row pgx.Row) (clinical.ProfileRecord, error) {
	var (
		rec     clinical.ProfileRecord
		sources []byte
		domains []byte
	)
	if err := row.Scan(&rec.DiseaseID, &rec.Description, &rec.Category, &sources, &rec.Confidence, &domains); err != nil {
		return clinical.ProfileRecord{}, err
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &rec.Sources); err != nil {
			return clinical.ProfileRecord{}, err
		}
	}
	if len(domains) > 0 {
		if err := json.Unmarshal(domains, &rec.Domains); err != nil {
			return clinical.ProfileRecord{}, err
		}
	}
	return rec, nil
}

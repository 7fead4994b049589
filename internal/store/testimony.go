package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mymiscarriage/apiserver/types"
)

const testimonyColumns = `id, name, when_weeks, when_weeks_noticed, physical_pain, mental_pain, hospital,
	period_volume, period_length, period_pain, story, status, created_at`

// TestimonyRepository handles persistence for testimonies.
type TestimonyRepository struct {
	db *sql.DB
}

func NewTestimonyRepository(db *sql.DB) *TestimonyRepository {
	return &TestimonyRepository{db: db}
}

// List returns one page of testimonies matching filter, newest first,
// together with the number of matching rows.
func (r *TestimonyRepository) List(ctx context.Context, filter types.TestimonyFilter, offset, limit int) ([]types.Testimony, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	where, args := filterClause(filter)

	countQuery := `SELECT COUNT(1) FROM testimonies` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, translateError("count testimonies", err)
	}

	listQuery := fmt.Sprintf(`
		SELECT %s
		FROM testimonies%s
		ORDER BY created_at DESC, id DESC
		OFFSET $%d LIMIT $%d`, testimonyColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, offset, limit)...)
	if err != nil {
		return nil, 0, translateError("list testimonies", err)
	}
	defer rows.Close()

	testimonies, err := scanTestimonies(rows, limit)
	if err != nil {
		return nil, 0, translateError("list testimonies", err)
	}
	return testimonies, total, nil
}

// ListByStatus returns up to limit testimonies with the given status, newest first.
func (r *TestimonyRepository) ListByStatus(ctx context.Context, status types.Status, limit int) ([]types.Testimony, error) {
	if limit < 1 {
		limit = 20
	}

	query := `
		SELECT ` + testimonyColumns + `
		FROM testimonies
		WHERE status = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, string(status), limit)
	if err != nil {
		return nil, translateError("list testimonies by status", err)
	}
	defer rows.Close()

	testimonies, err := scanTestimonies(rows, limit)
	if err != nil {
		return nil, translateError("list testimonies by status", err)
	}
	return testimonies, nil
}

func (r *TestimonyRepository) Get(ctx context.Context, id string) (types.Testimony, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Testimony{}, ErrNotFound
	}

	query := `
		SELECT ` + testimonyColumns + `
		FROM testimonies
		WHERE id = $1`
	testimony, err := scanTestimony(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return types.Testimony{}, translateError("get testimony", err)
	}
	return testimony, nil
}

// Create inserts testimony as given. ID, Status and CreatedAt must
// already be set by the caller.
func (r *TestimonyRepository) Create(ctx context.Context, testimony types.Testimony) (types.Testimony, error) {
	const query = `
		INSERT INTO testimonies (
			id, name, when_weeks, when_weeks_noticed, physical_pain, mental_pain, hospital,
			period_volume, period_length, period_pain, story, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		testimony.ID,
		testimony.Name,
		testimony.WhenWeeks,
		nullInt(testimony.WhenWeeksNoticed),
		nullString(string(testimony.PhysicalPain)),
		nullString(string(testimony.MentalPain)),
		nullBool(testimony.Hospital),
		nullString(string(testimony.PeriodVolume)),
		nullString(string(testimony.PeriodLength)),
		nullBool(testimony.PeriodPain),
		testimony.Story,
		string(testimony.Status),
		testimony.CreatedAt,
	)
	if err != nil {
		return types.Testimony{}, translateError("create testimony", err)
	}
	return testimony, nil
}

// Update applies the non-nil fields of patch and returns the stored record.
func (r *TestimonyRepository) Update(ctx context.Context, id string, patch types.TestimonyPatch) (types.Testimony, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Testimony{}, ErrNotFound
	}

	var status sql.NullString
	if patch.Status != nil {
		status = sql.NullString{String: string(*patch.Status), Valid: true}
	}

	query := `
		UPDATE testimonies
		SET name = COALESCE($1, name),
			story = COALESCE($2, story),
			status = COALESCE($3, status)
		WHERE id = $4
		RETURNING ` + testimonyColumns
	testimony, err := scanTestimony(r.db.QueryRowContext(
		ctx,
		query,
		nullStringPtr(patch.Name),
		nullStringPtr(patch.Story),
		status,
		id,
	))
	if err != nil {
		return types.Testimony{}, translateError("update testimony", err)
	}
	return testimony, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTestimony(row rowScanner) (types.Testimony, error) {
	var (
		testimony    types.Testimony
		weeksNoticed sql.NullInt64
		physicalPain sql.NullString
		mentalPain   sql.NullString
		hospital     sql.NullBool
		periodVolume sql.NullString
		periodLength sql.NullString
		periodPain   sql.NullBool
		status       string
	)
	if err := row.Scan(
		&testimony.ID,
		&testimony.Name,
		&testimony.WhenWeeks,
		&weeksNoticed,
		&physicalPain,
		&mentalPain,
		&hospital,
		&periodVolume,
		&periodLength,
		&periodPain,
		&testimony.Story,
		&status,
		&testimony.CreatedAt,
	); err != nil {
		return types.Testimony{}, err
	}

	if weeksNoticed.Valid {
		v := int(weeksNoticed.Int64)
		testimony.WhenWeeksNoticed = &v
	}
	if hospital.Valid {
		v := hospital.Bool
		testimony.Hospital = &v
	}
	if periodPain.Valid {
		v := periodPain.Bool
		testimony.PeriodPain = &v
	}
	testimony.PhysicalPain = types.Pain(physicalPain.String)
	testimony.MentalPain = types.Pain(mentalPain.String)
	testimony.PeriodVolume = types.PeriodVolume(periodVolume.String)
	testimony.PeriodLength = types.PeriodLength(periodLength.String)
	testimony.Status = types.Status(status)
	return testimony, nil
}

func scanTestimonies(rows *sql.Rows, capacity int) ([]types.Testimony, error) {
	testimonies := make([]types.Testimony, 0, capacity)
	for rows.Next() {
		testimony, err := scanTestimony(rows)
		if err != nil {
			return nil, err
		}
		testimonies = append(testimonies, testimony)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return testimonies, nil
}

// filterClause renders filter as a WHERE clause with positional arguments.
// Column names come from this function only, never from user input.
func filterClause(filter types.TestimonyFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.Name != nil {
		add("name", *filter.Name)
	}
	if filter.WhenWeeks != nil {
		add("when_weeks", *filter.WhenWeeks)
	}
	if filter.WhenWeeksNoticed != nil {
		add("when_weeks_noticed", *filter.WhenWeeksNoticed)
	}
	if filter.PhysicalPain != nil {
		add("physical_pain", string(*filter.PhysicalPain))
	}
	if filter.MentalPain != nil {
		add("mental_pain", string(*filter.MentalPain))
	}
	if filter.Hospital != nil {
		add("hospital", *filter.Hospital)
	}
	if filter.PeriodVolume != nil {
		add("period_volume", string(*filter.PeriodVolume))
	}
	if filter.PeriodLength != nil {
		add("period_length", string(*filter.PeriodLength))
	}
	if filter.PeriodPain != nil {
		add("period_pain", *filter.PeriodPain)
	}
	if filter.Status != nil {
		add("status", string(*filter.Status))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullStringPtr(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/pathfinder/internal/model"
)

// ApplicationRepository wraps all SQL touching the applications table.
type ApplicationRepository struct {
	pool *pgxpool.Pool
}

// NewApplicationRepository constructs a repository.
func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

const applicationColumns = `
	a.id, a.job_id, a.user_id, a.full_name, a.address, a.phone, a.email,
	a.cv_file, a.motivation_file, a.additional_info, a.status, a.applied_at,
	COALESCE(a.cv_text, ''), j.title, j.company, j.location`

func scanApplication(row pgx.Row) (*model.Application, error) {
	var app model.Application
	err := row.Scan(
		&app.ID, &app.JobID, &app.UserID, &app.FullName, &app.Address, &app.Phone, &app.Email,
		&app.CVFile, &app.MotivationFile, &app.AdditionalInfo, &app.Status, &app.AppliedAt,
		&app.CVText, &app.JobTitle, &app.JobCompany, &app.JobLocation,
	)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// Create inserts a pending application and fills in its id and timestamp.
func (r *ApplicationRepository) Create(ctx context.Context, app *model.Application) error {
	app.Status = model.StatusPending
	err := r.pool.QueryRow(ctx, `
		INSERT INTO applications (job_id, user_id, full_name, address, phone, email,
			cv_file, motivation_file, additional_info, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id, applied_at
	`, app.JobID, app.UserID, app.FullName, app.Address, app.Phone, app.Email,
		app.CVFile, app.MotivationFile, app.AdditionalInfo, app.Status,
	).Scan(&app.ID, &app.AppliedAt)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

// Get returns one application joined with its job.
func (r *ApplicationRepository) Get(ctx context.Context, id int64) (*model.Application, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+applicationColumns+`
		FROM applications a JOIN jobs j ON j.id = a.job_id
		WHERE a.id = $1`, id)
	app, err := scanApplication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select application: %w", err)
	}
	return app, nil
}

// List returns applications newest first.
func (r *ApplicationRepository) List(ctx context.Context, filter model.ApplicationFilter) ([]model.Application, error) {
	var w where
	if filter.Status != "" {
		w.add("a.status = $%d", filter.Status)
	}
	if filter.JobID > 0 {
		w.add("a.job_id = $%d", filter.JobID)
	}
	if filter.UserID > 0 {
		w.add("a.user_id = $%d", filter.UserID)
	}
	query := `SELECT ` + applicationColumns + `
		FROM applications a JOIN jobs j ON j.id = a.job_id` + w.String() +
		` ORDER BY a.applied_at DESC, a.id DESC` + w.limit(filter.Limit)
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()
	out := []model.Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, *app)
	}
	return out, rows.Err()
}

// UpdateStatus overwrites the status; there is no transition history.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id int64, status model.Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE applications SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCVText stores the text extracted from the CV.
func (r *ApplicationRepository) SetCVText(ctx context.Context, id int64, text string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE applications SET cv_text = $1 WHERE id = $2`, text, id)
	if err != nil {
		return fmt.Errorf("update cv text: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus groups the applications by status.
func (r *ApplicationRepository) CountByStatus(ctx context.Context) (map[model.Status]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM applications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}
	defer rows.Close()
	out := map[model.Status]int64{}
	for rows.Next() {
		var (
			status model.Status
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

// Recent returns the n newest applications in compact form.
func (r *ApplicationRepository) Recent(ctx context.Context, n int) ([]model.RecentApplication, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.full_name, j.title, a.applied_at
		FROM applications a JOIN jobs j ON j.id = a.job_id
		ORDER BY a.applied_at DESC, a.id DESC
		LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("recent applications: %w", err)
	}
	defer rows.Close()
	out := []model.RecentApplication{}
	for rows.Next() {
		var ra model.RecentApplication
		if err := rows.Scan(&ra.FullName, &ra.JobTitle, &ra.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan recent application: %w", err)
		}
		out = append(out, ra)
	}
	return out, rows.Err()
}

// ReferencedFiles returns every stored CV and motivation letter name.
func (r *ApplicationRepository) ReferencedFiles(ctx context.Context) (cvs, letters map[string]struct{}, err error) {
	rows, err := r.pool.Query(ctx, `SELECT cv_file, motivation_file FROM applications`)
	if err != nil {
		return nil, nil, fmt.Errorf("referenced files: %w", err)
	}
	defer rows.Close()
	cvs, letters = map[string]struct{}{}, map[string]struct{}{}
	for rows.Next() {
		var cv, letter string
		if err := rows.Scan(&cv, &letter); err != nil {
			return nil, nil, fmt.Errorf("scan referenced files: %w", err)
		}
		cvs[cv] = struct{}{}
		letters[letter] = struct{}{}
	}
	return cvs, letters, rows.Err()
}

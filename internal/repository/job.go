package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/pathfinder/internal/model"
)

// JobRepository wraps the jobs and job_categories tables.
type JobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository constructs a repository.
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `
	j.id, j.title, j.company, j.location, j.description, j.requirements,
	j.salary_min, j.salary_max, j.job_type, j.category_id, c.name, c.slug,
	j.is_active, j.created_at, j.updated_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	var job model.Job
	err := row.Scan(
		&job.ID, &job.Title, &job.Company, &job.Location, &job.Description, &job.Requirements,
		&job.SalaryMin, &job.SalaryMax, &job.JobType, &job.CategoryID, &job.CategoryName, &job.CategorySlug,
		&job.IsActive, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) getJob(ctx context.Context, id int64, activeOnly bool) (*model.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM jobs j LEFT JOIN job_categories c ON c.id = j.category_id
		WHERE j.id = $1`
	if activeOnly {
		query += ` AND j.is_active`
	}
	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

// GetActive returns the job only while it is accepting applications.
func (r *JobRepository) GetActive(ctx context.Context, id int64) (*model.Job, error) {
	return r.getJob(ctx, id, true)
}

// Get returns the job regardless of its active flag.
func (r *JobRepository) Get(ctx context.Context, id int64) (*model.Job, error) {
	return r.getJob(ctx, id, false)
}

// List returns active jobs newest first.
func (r *JobRepository) List(ctx context.Context, filter model.JobFilter) ([]model.Job, error) {
	w := where{conds: []string{"j.is_active"}}
	if filter.CategorySlug != "" {
		w.add("c.slug = $%d", filter.CategorySlug)
	}
	if filter.Search != "" {
		w.add("(j.title ILIKE $%[1]d OR j.company ILIKE $%[1]d OR j.description ILIKE $%[1]d)", "%"+filter.Search+"%")
	}
	query := `SELECT ` + jobColumns + `
		FROM jobs j LEFT JOIN job_categories c ON c.id = j.category_id` + w.String() +
		` ORDER BY j.created_at DESC, j.id DESC` + w.limit(filter.Limit)
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	out := []model.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// Create inserts an active job and fills in id and timestamps.
func (r *JobRepository) Create(ctx context.Context, job *model.Job) error {
	job.IsActive = true
	err := r.pool.QueryRow(ctx, `
		INSERT INTO jobs (title, company, location, description, requirements,
			salary_min, salary_max, job_type, category_id, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,TRUE)
		RETURNING id, created_at, updated_at
	`, job.Title, job.Company, job.Location, job.Description, job.Requirements,
		job.SalaryMin, job.SalaryMax, job.JobType, job.CategoryID,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Update rewrites every editable column and refreshes updated_at.
func (r *JobRepository) Update(ctx context.Context, job *model.Job) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE jobs SET title=$1, company=$2, location=$3, description=$4, requirements=$5,
			salary_min=$6, salary_max=$7, job_type=$8, category_id=$9, updated_at=now()
		WHERE id=$10
		RETURNING is_active, created_at, updated_at
	`, job.Title, job.Company, job.Location, job.Description, job.Requirements,
		job.SalaryMin, job.SalaryMax, job.JobType, job.CategoryID, job.ID,
	).Scan(&job.IsActive, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a job.
func (r *JobRepository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE jobs SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Categories lists job categories by name.
func (r *JobRepository) Categories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, slug FROM job_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	out := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Stats aggregates posting counts for the admin dashboard.
func (r *JobRepository) Stats(ctx context.Context) (model.JobStats, error) {
	stats := model.JobStats{ByCategory: []model.CategoryCount{}, Recent: []model.RecentJob{}}
	err := r.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM jobs WHERE is_active),
		       (SELECT COUNT(*) FROM applications)`,
	).Scan(&stats.TotalJobs, &stats.TotalApplications)
	if err != nil {
		return stats, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT c.name, COUNT(j.id)
		FROM job_categories c LEFT JOIN jobs j ON j.category_id = c.id AND j.is_active
		GROUP BY c.id, c.name
		ORDER BY c.name`)
	if err != nil {
		return stats, fmt.Errorf("jobs by category: %w", err)
	}
	for rows.Next() {
		var cc model.CategoryCount
		if err := rows.Scan(&cc.Name, &cc.Count); err != nil {
			rows.Close()
			return stats, fmt.Errorf("scan category count: %w", err)
		}
		stats.ByCategory = append(stats.ByCategory, cc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	rows, err = r.pool.Query(ctx, `
		SELECT title, company, created_at FROM jobs
		WHERE is_active
		ORDER BY created_at DESC, id DESC
		LIMIT 5`)
	if err != nil {
		return stats, fmt.Errorf("recent jobs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rj model.RecentJob
		if err := rows.Scan(&rj.Title, &rj.Company, &rj.CreatedAt); err != nil {
			return stats, fmt.Errorf("scan recent job: %w", err)
		}
		stats.Recent = append(stats.Recent, rj)
	}
	return stats, rows.Err()
}

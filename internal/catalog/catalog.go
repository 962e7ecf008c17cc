// Package catalog manages job postings and their categories.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/pathfinder/internal/apperr"
	"github.com/dharsanguruparan/pathfinder/internal/logger"
	"github.com/dharsanguruparan/pathfinder/internal/model"
	"github.com/dharsanguruparan/pathfinder/internal/repository"
	"github.com/dharsanguruparan/pathfinder/internal/validate"
)

// Jobs is the persistence the catalogue needs.
type Jobs interface {
	GetActive(ctx context.Context, id int64) (*model.Job, error)
	Get(ctx context.Context, id int64) (*model.Job, error)
	List(ctx context.Context, filter model.JobFilter) ([]model.Job, error)
	Create(ctx context.Context, job *model.Job) error
	Update(ctx context.Context, job *model.Job) error
	Deactivate(ctx context.Context, id int64) error
	Categories(ctx context.Context) ([]model.Category, error)
	Stats(ctx context.Context) (model.JobStats, error)
}

// JobInput is the editable part of a posting.
type JobInput struct {
	Title        string
	Company      string
	Location     string
	Description  string
	Requirements string
	SalaryMin    *int64
	SalaryMax    *int64
	JobType      string
	CategoryID   int64
}

// Service exposes the public listing and the admin CRUD operations.
type Service struct {
	jobs Jobs
	log  zerolog.Logger
}

func NewService(jobs Jobs) *Service {
	return &Service{jobs: jobs, log: logger.Get("catalog")}
}

// List returns active postings newest first.
func (s *Service) List(ctx context.Context, filter model.JobFilter) ([]model.Job, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	jobs, err := s.jobs.List(ctx, filter)
	if err != nil {
		return nil, apperr.Persistence("list jobs", err)
	}
	return jobs, nil
}

// Get returns an active posting.
func (s *Service) Get(ctx context.Context, id int64) (*model.Job, error) {
	return s.lookup(ctx, id, s.jobs.GetActive)
}

// AdminGet returns a posting even after it was deleted.
func (s *Service) AdminGet(ctx context.Context, id int64) (*model.Job, error) {
	return s.lookup(ctx, id, s.jobs.Get)
}

func (s *Service) lookup(ctx context.Context, id int64, get func(context.Context, int64) (*model.Job, error)) (*model.Job, error) {
	job, err := get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Job")
	}
	if err != nil {
		return nil, apperr.Persistence("get job", err)
	}
	return job, nil
}

// Categories lists the categories by name.
func (s *Service) Categories(ctx context.Context) ([]model.Category, error) {
	cats, err := s.jobs.Categories(ctx)
	if err != nil {
		return nil, apperr.Persistence("list categories", err)
	}
	return cats, nil
}

// Create validates and stores a new active posting.
func (s *Service) Create(ctx context.Context, in JobInput) (*model.Job, error) {
	job, err := s.build(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		s.log.Error().Err(err).Msg("create job failed")
		return nil, apperr.Persistence("create job", err)
	}
	s.log.Info().Int64("job_id", job.ID).Str("title", job.Title).Msg("job created")
	return job, nil
}

// Update rewrites every editable field of a posting.
func (s *Service) Update(ctx context.Context, id int64, in JobInput) (*model.Job, error) {
	job, err := s.build(ctx, in)
	if err != nil {
		return nil, err
	}
	job.ID = id
	if err := s.jobs.Update(ctx, job); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Job")
		}
		s.log.Error().Err(err).Int64("job_id", id).Msg("update job failed")
		return nil, apperr.Persistence("update job", err)
	}
	return job, nil
}

// Delete hides a posting from the public listing.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.jobs.Deactivate(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Job")
		}
		return apperr.Persistence("delete job", err)
	}
	s.log.Info().Int64("job_id", id).Msg("job deactivated")
	return nil
}

// Stats aggregates posting counts for the dashboard.
func (s *Service) Stats(ctx context.Context) (model.JobStats, error) {
	stats, err := s.jobs.Stats(ctx)
	if err != nil {
		return model.JobStats{}, apperr.Persistence("job stats", err)
	}
	return stats, nil
}

func (s *Service) build(ctx context.Context, in JobInput) (*model.Job, error) {
	job := &model.Job{
		Title:        validate.StripTags(in.Title),
		Company:      validate.StripTags(in.Company),
		Location:     validate.StripTags(in.Location),
		Description:  validate.StripTags(in.Description),
		Requirements: validate.StripTags(in.Requirements),
		SalaryMin:    in.SalaryMin,
		SalaryMax:    in.SalaryMax,
		JobType:      validate.StripTags(in.JobType),
		CategoryID:   in.CategoryID,
	}
	required := []struct {
		name  string
		empty bool
	}{
		{"title", job.Title == ""},
		{"company", job.Company == ""},
		{"location", job.Location == ""},
		{"description", job.Description == ""},
		{"category_id", job.CategoryID <= 0},
	}
	for _, field := range required {
		if field.empty {
			return nil, apperr.Required(field.name)
		}
	}
	if job.JobType == "" {
		job.JobType = model.DefaultJobType
	}
	if (job.SalaryMin != nil && *job.SalaryMin < 0) || (job.SalaryMax != nil && *job.SalaryMax < 0) {
		return nil, apperr.Invalid("salary", "Salary cannot be negative")
	}
	if job.SalaryMin != nil && job.SalaryMax != nil && *job.SalaryMin > *job.SalaryMax && *job.SalaryMax > 0 {
		return nil, apperr.Invalid("salary", "Minimum salary exceeds maximum salary")
	}
	cats, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range cats {
		if c.ID == job.CategoryID {
			return job, nil
		}
	}
	return nil, apperr.Invalid("category_id", "Unknown category")
}

// SalaryRange renders the salary bounds for display. A zero bound counts as
// unset.
func SalaryRange(minSalary, maxSalary *int64) string {
	lo, hi := int64(0), int64(0)
	if minSalary != nil {
		lo = *minSalary
	}
	if maxSalary != nil {
		hi = *maxSalary
	}
	switch {
	case lo == 0 && hi == 0:
		return "Salary not specified"
	case hi == 0:
		return "$" + humanize.Comma(lo) + "+"
	case lo == 0:
		return "Up to $" + humanize.Comma(hi)
	}
	return "$" + humanize.Comma(lo) + " - $" + humanize.Comma(hi)
}

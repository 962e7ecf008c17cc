// Package workflow orchestrates application submission and review. Submission
// is a short sequential pipeline: cheap checks first, then the two uploads,
// then the row insert, undoing already-stored documents in reverse order when
// a later step fails.
package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/pathfinder/internal/apperr"
	"github.com/dharsanguruparan/pathfinder/internal/docstore"
	"github.com/dharsanguruparan/pathfinder/internal/logger"
	"github.com/dharsanguruparan/pathfinder/internal/metrics"
	"github.com/dharsanguruparan/pathfinder/internal/model"
	"github.com/dharsanguruparan/pathfinder/internal/repository"
	"github.com/dharsanguruparan/pathfinder/internal/session"
	"github.com/dharsanguruparan/pathfinder/internal/validate"
)

// RecentLimit is the number of applications shown on the dashboard.
const RecentLimit = 5

// JobLookup resolves postings that still accept applications.
type JobLookup interface {
	GetActive(ctx context.Context, id int64) (*model.Job, error)
}

// Applications is the persistence the service needs.
type Applications interface {
	Create(ctx context.Context, app *model.Application) error
	Get(ctx context.Context, id int64) (*model.Application, error)
	List(ctx context.Context, filter model.ApplicationFilter) ([]model.Application, error)
	UpdateStatus(ctx context.Context, id int64, status model.Status) error
	CountByStatus(ctx context.Context) (map[model.Status]int64, error)
	Recent(ctx context.Context, n int) ([]model.RecentApplication, error)
}

// Enqueuer schedules CV text extraction.
type Enqueuer interface {
	EnqueueIndexCV(ctx context.Context, applicationID int64, cvFile string) error
}

// SubmitRequest is one application as received from a client.
type SubmitRequest struct {
	JobID      int64
	Form       validate.ApplicantForm
	CV         docstore.Upload
	Motivation docstore.Upload
}

// Service implements submission, status changes and the read side.
type Service struct {
	jobs  JobLookup
	apps  Applications
	docs  docstore.Store
	queue Enqueuer
	log   zerolog.Logger
}

// NewService wires the collaborators. queue may be nil, in which case CVs are
// not indexed.
func NewService(jobs JobLookup, apps Applications, docs docstore.Store, queue Enqueuer) *Service {
	return &Service{jobs: jobs, apps: apps, docs: docs, queue: queue, log: logger.Get("workflow")}
}

// Submit runs the submission pipeline. identity is the signed-in caller or nil
// for an anonymous applicant. On failure it returns one of the apperr types
// and leaves no stored document behind, except when a rollback itself fails;
// those leftovers are logged and reclaimed by the orphan sweep.
func (s *Service) Submit(ctx context.Context, identity *session.Identity, req SubmitRequest) (*model.Application, error) {
	app, err := s.submit(ctx, identity, req)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}
	metrics.SubmissionsTotal.WithLabelValues("success").Inc()
	s.log.Info().Int64("application_id", app.ID).Int64("job_id", app.JobID).Msg("application submitted")
	s.enqueueIndex(ctx, app)
	return app, nil
}

func (s *Service) submit(ctx context.Context, identity *session.Identity, req SubmitRequest) (*model.Application, error) {
	form := req.Form.Clean()
	if err := form.Validate(); err != nil {
		return nil, err
	}

	if req.JobID <= 0 {
		return nil, apperr.NotFound("Job")
	}
	if _, err := s.jobs.GetActive(ctx, req.JobID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Job")
		}
		s.log.Error().Err(err).Int64("job_id", req.JobID).Msg("job lookup failed")
		return nil, apperr.Persistence("lookup job", err)
	}

	cvRef, err := s.docs.Store(ctx, docstore.CategoryCV, req.CV)
	if err != nil {
		return nil, uploadError("cv", err)
	}

	letterRef, err := s.docs.Store(ctx, docstore.CategoryMotivation, req.Motivation)
	if err != nil {
		s.rollback(ctx, docstore.CategoryCV, cvRef)
		return nil, uploadError("motivation", err)
	}

	app := &model.Application{
		JobID:          req.JobID,
		UserID:         identity.UserID(),
		FullName:       form.FullName,
		Address:        form.Address,
		Phone:          form.Phone,
		Email:          form.Email,
		CVFile:         cvRef,
		MotivationFile: letterRef,
		AdditionalInfo: form.AdditionalInfo,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		s.log.Error().Err(err).Int64("job_id", req.JobID).Msg("insert application failed")
		s.rollback(ctx, docstore.CategoryMotivation, letterRef)
		s.rollback(ctx, docstore.CategoryCV, cvRef)
		return nil, apperr.Persistence("insert application", err)
	}
	return app, nil
}

// rollback removes a document stored earlier in the same submission.
func (s *Service) rollback(ctx context.Context, cat docstore.Category, ref string) {
	metrics.RollbacksTotal.WithLabelValues(string(cat)).Inc()
	s.log.Warn().Str("category", string(cat)).Str("ref", ref).Msg("rolling back upload; ref is an orphan candidate if removal fails")
	// The request context may already be cancelled; cleanup must still run.
	s.docs.Remove(context.WithoutCancel(ctx), cat, ref)
}

func (s *Service) enqueueIndex(ctx context.Context, app *model.Application) {
	if s.queue == nil || !strings.EqualFold(filepath.Ext(app.CVFile), ".pdf") {
		return
	}
	if err := s.queue.EnqueueIndexCV(ctx, app.ID, app.CVFile); err != nil {
		s.log.Warn().Err(err).Int64("application_id", app.ID).Msg("enqueue cv indexing failed")
	}
}

func uploadError(which string, err error) *apperr.UploadError {
	return &apperr.UploadError{Which: which, Missing: errors.Is(err, docstore.ErrMissingFile), Err: err}
}

func outcome(err error) string {
	var (
		verr *apperr.ValidationError
		nerr *apperr.NotFoundError
		uerr *apperr.UploadError
	)
	switch {
	case errors.As(err, &verr):
		return "invalid"
	case errors.As(err, &nerr):
		return "job_not_found"
	case errors.As(err, &uerr):
		return "upload_failed"
	}
	return "error"
}

// UpdateStatus overwrites an application's status. Any status may follow any
// other.
func (s *Service) UpdateStatus(ctx context.Context, id int64, candidate string) error {
	status, ok := model.ParseStatus(candidate)
	if !ok {
		return apperr.ErrInvalidStatus
	}
	if err := s.apps.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Application")
		}
		s.log.Error().Err(err).Int64("application_id", id).Msg("update status failed")
		return apperr.Persistence("update status", err)
	}
	metrics.StatusUpdatesTotal.WithLabelValues(string(status)).Inc()
	s.log.Info().Int64("application_id", id).Str("status", string(status)).Msg("application status updated")
	return nil
}

// Get returns one application with its job columns.
func (s *Service) Get(ctx context.Context, id int64) (*model.Application, error) {
	app, err := s.apps.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Application")
	}
	if err != nil {
		return nil, apperr.Persistence("get application", err)
	}
	return app, nil
}

// List returns applications newest first. An unknown status filter is
// rejected rather than silently matching nothing.
func (s *Service) List(ctx context.Context, status string, limit int) ([]model.Application, error) {
	filter := model.ApplicationFilter{Limit: limit}
	if strings.TrimSpace(status) != "" {
		st, ok := model.ParseStatus(status)
		if !ok {
			return nil, apperr.ErrInvalidStatus
		}
		filter.Status = st
	}
	return s.list(ctx, filter)
}

// ListByJob returns every application for one posting.
func (s *Service) ListByJob(ctx context.Context, jobID int64) ([]model.Application, error) {
	return s.list(ctx, model.ApplicationFilter{JobID: jobID})
}

// ListByUser returns the applications submitted by a signed-in job seeker.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]model.Application, error) {
	return s.list(ctx, model.ApplicationFilter{UserID: userID})
}

func (s *Service) list(ctx context.Context, filter model.ApplicationFilter) ([]model.Application, error) {
	apps, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, apperr.Persistence("list applications", err)
	}
	return apps, nil
}

// Stats aggregates counts by status plus the most recent submissions.
func (s *Service) Stats(ctx context.Context) (model.ApplicationStats, error) {
	counts, err := s.apps.CountByStatus(ctx)
	if err != nil {
		return model.ApplicationStats{}, apperr.Persistence("count applications", err)
	}
	recent, err := s.apps.Recent(ctx, RecentLimit)
	if err != nil {
		return model.ApplicationStats{}, apperr.Persistence("recent applications", err)
	}
	return model.NewApplicationStats(counts, recent), nil
}

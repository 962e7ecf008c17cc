package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dharsanguruparan/pathfinder/internal/apperr"
	"github.com/dharsanguruparan/pathfinder/internal/docstore"
	"github.com/dharsanguruparan/pathfinder/internal/model"
	"github.com/dharsanguruparan/pathfinder/internal/session"
	"github.com/dharsanguruparan/pathfinder/internal/storage"
	"github.com/dharsanguruparan/pathfinder/internal/validate"
)

// flakyApplications fails inserts while fail is set.
type flakyApplications struct {
	*storage.ApplicationStore
	fail bool
}

func (f *flakyApplications) Create(ctx context.Context, app *model.Application) error {
	if f.fail {
		return errors.New("connection refused")
	}
	return f.ApplicationStore.Create(ctx, app)
}

type recordingQueue struct {
	calls []int64
	err   error
}

func (q *recordingQueue) EnqueueIndexCV(_ context.Context, id int64, _ string) error {
	q.calls = append(q.calls, id)
	return q.err
}

type fixture struct {
	svc   *Service
	apps  *flakyApplications
	queue *recordingQueue
	root  string
	job   *model.Job
	jobs  *storage.JobStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := storage.NewMemoryStore()
	jobs := mem.Jobs()
	job := &model.Job{Title: "Go Developer", Company: "Acme", Location: "Remote", Description: "Build services", CategoryID: 1}
	if err := jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	root := t.TempDir()
	docs := docstore.NewFileStore(root, docstore.Policy{MaxSize: 1 << 20, Extensions: []string{"pdf", "doc", "docx"}})
	apps := &flakyApplications{ApplicationStore: mem.Applications()}
	queue := &recordingQueue{}
	return &fixture{
		svc:   NewService(jobs, apps, docs, queue),
		apps:  apps,
		queue: queue,
		root:  root,
		job:   job,
		jobs:  jobs,
	}
}

func (f *fixture) files(t *testing.T, cat docstore.Category) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(f.root, cat.Dir()))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (f *fixture) rows(t *testing.T) int {
	t.Helper()
	apps, err := f.apps.List(context.Background(), model.ApplicationFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return len(apps)
}

func (f *fixture) assertNoSideEffects(t *testing.T) {
	t.Helper()
	if n := len(f.files(t, docstore.CategoryCV)); n != 0 {
		t.Fatalf("expected no stored CVs, found %d", n)
	}
	if n := len(f.files(t, docstore.CategoryMotivation)); n != 0 {
		t.Fatalf("expected no stored letters, found %d", n)
	}
	if n := f.rows(t); n != 0 {
		t.Fatalf("expected no rows, found %d", n)
	}
}

func doc(name, body string) docstore.Upload {
	return docstore.Upload{Filename: name, Body: strings.NewReader(body), Size: int64(len(body))}
}

func (f *fixture) request() SubmitRequest {
	return SubmitRequest{
		JobID: f.job.ID,
		Form: validate.ApplicantForm{
			FullName:       "Jane Doe",
			Address:        "1 Main St",
			Phone:          "555-0100",
			Email:          "jane@x.com",
			AdditionalInfo: "Available immediately",
		},
		CV:         doc("cv.pdf", "%PDF-1.4 cv"),
		Motivation: doc("letter.docx", "letter"),
	}
}

func TestSubmitSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.Submit(ctx, nil, f.request())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if app.ID == 0 {
		t.Fatalf("expected application id")
	}
	got, err := f.svc.Get(ctx, app.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusPending || got.FullName != "Jane Doe" || got.Email != "jane@x.com" {
		t.Fatalf("unexpected stored application %+v", got)
	}
	if got.UserID != nil {
		t.Fatalf("anonymous submission must not carry a user id")
	}
	if got.JobTitle != "Go Developer" {
		t.Fatalf("expected denormalized job title, got %q", got.JobTitle)
	}
	for cat, ref := range map[docstore.Category]string{docstore.CategoryCV: got.CVFile, docstore.CategoryMotivation: got.MotivationFile} {
		if _, err := os.Stat(filepath.Join(f.root, cat.Dir(), ref)); err != nil {
			t.Fatalf("expected %s reference %q to resolve: %v", cat, ref, err)
		}
	}
	if len(f.queue.calls) != 1 || f.queue.calls[0] != app.ID {
		t.Fatalf("expected one index task for the PDF CV, got %v", f.queue.calls)
	}
}

func TestSubmitRecordsSignedInUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.Submit(ctx, &session.Identity{ID: 77, Role: model.RoleUser}, f.request())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if app.UserID == nil || *app.UserID != 77 {
		t.Fatalf("expected user id 77, got %v", app.UserID)
	}
	mine, _ := f.svc.ListByUser(ctx, 77)
	if len(mine) != 1 {
		t.Fatalf("expected one application for user, got %d", len(mine))
	}

	app, err = f.svc.Submit(ctx, &session.Identity{ID: 1, Role: model.RoleAdmin}, f.request())
	if err != nil {
		t.Fatalf("submit as admin: %v", err)
	}
	if app.UserID != nil {
		t.Fatalf("admin identity must not be recorded as applicant")
	}
}

func TestSubmitMissingFieldHasNoSideEffects(t *testing.T) {
	fields := map[string]func(*validate.ApplicantForm){
		validate.FieldFullName:       func(fm *validate.ApplicantForm) { fm.FullName = "" },
		validate.FieldAddress:        func(fm *validate.ApplicantForm) { fm.Address = "" },
		validate.FieldPhone:          func(fm *validate.ApplicantForm) { fm.Phone = " " },
		validate.FieldEmail:          func(fm *validate.ApplicantForm) { fm.Email = "" },
		validate.FieldAdditionalInfo: func(fm *validate.ApplicantForm) { fm.AdditionalInfo = "<b></b>" },
	}
	for field, blank := range fields {
		t.Run(field, func(t *testing.T) {
			f := newFixture(t)
			req := f.request()
			blank(&req.Form)
			_, err := f.svc.Submit(context.Background(), nil, req)
			var verr *apperr.ValidationError
			if !errors.As(err, &verr) || verr.Field != field {
				t.Fatalf("expected ValidationError(%s), got %v", field, err)
			}
			f.assertNoSideEffects(t)
		})
	}
}

func TestSubmitBadEmailFailsBeforeUpload(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.Form.Email = "not-an-email"
	_, err := f.svc.Submit(context.Background(), nil, req)
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) || verr.Field != validate.FieldEmail {
		t.Fatalf("expected email ValidationError, got %v", err)
	}
	if !strings.Contains(strings.ToLower(err.Error()), "email") {
		t.Fatalf("expected message to mention email, got %q", err.Error())
	}
	f.assertNoSideEffects(t)
}

func TestSubmitUnknownOrInactiveJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.request()
	req.JobID = 999
	var nerr *apperr.NotFoundError
	if _, err := f.svc.Submit(ctx, nil, req); !errors.As(err, &nerr) || nerr.Entity != "Job" {
		t.Fatalf("expected NotFoundError(Job), got %v", err)
	}

	if err := f.jobs.Deactivate(ctx, f.job.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := f.svc.Submit(ctx, nil, f.request()); !errors.As(err, &nerr) {
		t.Fatalf("expected NotFoundError for inactive job, got %v", err)
	}
	f.assertNoSideEffects(t)
}

func TestSubmitBadCVStoresNothing(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.CV = doc("cv.exe", "MZ")
	_, err := f.svc.Submit(context.Background(), nil, req)
	var uerr *apperr.UploadError
	if !errors.As(err, &uerr) || uerr.Which != "cv" || uerr.Missing {
		t.Fatalf("expected UploadError(cv), got %v", err)
	}
	f.assertNoSideEffects(t)

	req = f.request()
	req.CV = docstore.Upload{}
	_, err = f.svc.Submit(context.Background(), nil, req)
	if !errors.As(err, &uerr) || uerr.Which != "cv" || !uerr.Missing {
		t.Fatalf("expected missing UploadError(cv), got %v", err)
	}
	f.assertNoSideEffects(t)
}

func TestSubmitBadMotivationRollsBackCVAndRetrySucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.request()
	req.Motivation = doc("letter.txt", "plain text")
	_, err := f.svc.Submit(ctx, nil, req)
	var uerr *apperr.UploadError
	if !errors.As(err, &uerr) || uerr.Which != "motivation" {
		t.Fatalf("expected UploadError(motivation), got %v", err)
	}
	f.assertNoSideEffects(t)

	req = f.request()
	req.Motivation = docstore.Upload{}
	if _, err := f.svc.Submit(ctx, nil, req); !errors.As(err, &uerr) || !uerr.Missing {
		t.Fatalf("expected missing UploadError(motivation), got %v", err)
	}
	f.assertNoSideEffects(t)

	if _, err := f.svc.Submit(ctx, nil, f.request()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if cvs, letters, rows := len(f.files(t, docstore.CategoryCV)), len(f.files(t, docstore.CategoryMotivation)), f.rows(t); cvs != 1 || letters != 1 || rows != 1 {
		t.Fatalf("expected exactly one cv, letter and row; got %d %d %d", cvs, letters, rows)
	}
}

func TestSubmitInsertFailureRollsBackBothUploads(t *testing.T) {
	f := newFixture(t)
	f.apps.fail = true
	_, err := f.svc.Submit(context.Background(), nil, f.request())
	var perr *apperr.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	f.assertNoSideEffects(t)
	if len(f.queue.calls) != 0 {
		t.Fatalf("failed submission must not enqueue work")
	}
}

func TestSubmitEnqueueOnlyForPDFAndNeverFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.request()
	req.CV = doc("cv.docx", "word")
	if _, err := f.svc.Submit(ctx, nil, req); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(f.queue.calls) != 0 {
		t.Fatalf("expected no index task for a docx CV")
	}

	f.queue.err = errors.New("redis down")
	if _, err := f.svc.Submit(ctx, nil, f.request()); err != nil {
		t.Fatalf("enqueue failure must not fail the submission: %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, err := f.svc.Submit(ctx, nil, f.request())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	for _, bad := range []string{"archived", "", "Hired"} {
		if err := f.svc.UpdateStatus(ctx, app.ID, bad); !errors.Is(err, apperr.ErrInvalidStatus) {
			t.Fatalf("expected ErrInvalidStatus for %q, got %v", bad, err)
		}
	}
	got, _ := f.svc.Get(ctx, app.ID)
	if got.Status != model.StatusPending {
		t.Fatalf("invalid update must leave status unchanged, got %s", got.Status)
	}

	var nerr *apperr.NotFoundError
	if err := f.svc.UpdateStatus(ctx, 4242, "reviewed"); !errors.As(err, &nerr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	for _, next := range []string{"hired", "pending", " shortlisted "} {
		if err := f.svc.UpdateStatus(ctx, app.ID, next); err != nil {
			t.Fatalf("update to %q: %v", next, err)
		}
	}
	got, _ = f.svc.Get(ctx, app.ID)
	if got.Status != model.StatusShortlisted {
		t.Fatalf("expected last write to win, got %s", got.Status)
	}
}

func TestListAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ids []int64
	for i := 0; i < 7; i++ {
		app, err := f.svc.Submit(ctx, nil, f.request())
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		ids = append(ids, app.ID)
	}
	_ = f.svc.UpdateStatus(ctx, ids[0], "reviewed")
	_ = f.svc.UpdateStatus(ctx, ids[1], "hired")

	limited, err := f.svc.List(ctx, "", 3)
	if err != nil || len(limited) != 3 {
		t.Fatalf("expected 3 applications, got %d %v", len(limited), err)
	}
	pending, _ := f.svc.List(ctx, "pending", 0)
	if len(pending) != 5 {
		t.Fatalf("expected 5 pending, got %d", len(pending))
	}
	if _, err := f.svc.List(ctx, "bogus", 0); !errors.Is(err, apperr.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus for unknown filter, got %v", err)
	}
	byJob, _ := f.svc.ListByJob(ctx, f.job.ID)
	if len(byJob) != 7 {
		t.Fatalf("expected 7 applications for job, got %d", len(byJob))
	}

	stats, err := f.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 7 || stats.Pending != 5 || stats.Reviewed != 1 || stats.Hired != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(stats.Recent) != RecentLimit {
		t.Fatalf("expected %d recent, got %d", RecentLimit, len(stats.Recent))
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/pathfinder/internal/auth"
	"github.com/dharsanguruparan/pathfinder/internal/catalog"
	"github.com/dharsanguruparan/pathfinder/internal/config"
	"github.com/dharsanguruparan/pathfinder/internal/docstore"
	"github.com/dharsanguruparan/pathfinder/internal/model"
	"github.com/dharsanguruparan/pathfinder/internal/session"
	"github.com/dharsanguruparan/pathfinder/internal/signing"
	"github.com/dharsanguruparan/pathfinder/internal/storage"
	"github.com/dharsanguruparan/pathfinder/internal/workflow"
)

type harness struct {
	handler  http.Handler
	mem      *storage.MemoryStore
	sessions *session.MemoryStore
	signer   *signing.Signer
	root     string
	job      *model.Job
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithExtensions(t, []string{"pdf", "doc", "docx"})
}

func newHarnessWithExtensions(t *testing.T, extensions []string) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := storage.NewMemoryStore()
	jobs := mem.Jobs()
	job := &model.Job{Title: "Go Developer", Company: "Acme", Location: "Berlin", Description: "Build services", CategoryID: 1}
	if err := jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	root := t.TempDir()
	docs := docstore.NewFileStore(root, docstore.Policy{MaxSize: 1 << 20, Extensions: extensions})
	sessions := session.NewMemoryStore(time.Hour)
	signer := signing.NewSigner([]byte("test-secret"), time.Minute)

	cfg := &config.Config{MaxFileSize: 1 << 20, AllowedExtensions: extensions, SessionTTL: time.Hour}
	srv := New(cfg, Deps{
		Applications: workflow.NewService(jobs, mem.Applications(), docs, nil),
		Jobs:         catalog.NewService(jobs),
		Auth:         auth.NewService(mem.Users(), sessions),
		Documents:    docs,
		Signer:       signer,
	})
	return &harness{handler: srv.Handler(), mem: mem, sessions: sessions, signer: signer, root: root, job: job}
}

func (h *harness) cookie(t *testing.T, role model.Role) string {
	t.Helper()
	token, err := h.sessions.Create(context.Background(), session.Identity{ID: 1, Role: role, Email: "someone@x.com"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return token
}

func (h *harness) do(t *testing.T, req *http.Request, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	body := map[string]any{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %q: %v", rec.Body.String(), err)
		}
	}
	return rec, body
}

func submission(t *testing.T, fields map[string]string, files map[string][2]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	for field, file := range files {
		part, err := w.CreateFormFile(field, file[0])
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write([]byte(file[1]))
	}
	_ = w.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/applications", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func applicantFields(jobID int64) map[string]string {
	return map[string]string{
		"job_id":          strconv.FormatInt(jobID, 10),
		"full_name":       "Jane Doe",
		"address":         "1 Main St",
		"phone":           "555-0100",
		"email":           "jane@x.com",
		"additional_info": "Available immediately",
	}
}

var applicantFiles = map[string][2]string{
	"cv":         {"jane_cv.pdf", "%PDF-1.4 jane"},
	"motivation": {"letter.docx", "dear hiring manager"},
}

func form(method, path string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (h *harness) countApplications(t *testing.T) int {
	t.Helper()
	apps, err := h.mem.Applications().List(context.Background(), model.ApplicationFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return len(apps)
}

func TestSubmitAndReview(t *testing.T) {
	h := newHarness(t)
	admin := h.cookie(t, model.RoleAdmin)

	rec, body := h.do(t, submission(t, applicantFields(h.job.ID), applicantFiles), "")
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("submit failed: %d %v", rec.Code, body)
	}
	id, isNum := body["application_id"].(float64)
	if !isNum || id <= 0 {
		t.Fatalf("expected application_id, got %v", body)
	}

	path := "/api/admin/applications/" + strconv.Itoa(int(id))
	rec, body = h.do(t, httptest.NewRequest(http.MethodGet, path, nil), admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("get application: %d %v", rec.Code, body)
	}
	app := body["application"].(map[string]any)
	if app["status"] != "pending" || app["full_name"] != "Jane Doe" || app["job_title"] != "Go Developer" || app["status_color"] != "orange" {
		t.Fatalf("unexpected application %v", app)
	}
	for dir, key := range map[string]string{"cvs": "cv_file", "motivation_letters": "motivation_file"} {
		if _, err := os.Stat(filepath.Join(h.root, dir, app[key].(string))); err != nil {
			t.Fatalf("expected stored %s: %v", key, err)
		}
	}

	rec, _ = h.do(t, httptest.NewRequest(http.MethodGet, app["cv_url"].(string), nil), "")
	if rec.Code != http.StatusOK || rec.Body.String() != "%PDF-1.4 jane" {
		t.Fatalf("signed download: %d %q", rec.Code, rec.Body.String())
	}

	rec, body = h.do(t, form(http.MethodPost, "/api/admin/applications/status", url.Values{"id": {strconv.Itoa(int(id))}, "status": {"shortlisted"}}), admin)
	if rec.Code != http.StatusOK || body["message"] != "Application status updated" {
		t.Fatalf("update status: %d %v", rec.Code, body)
	}
	rec, body = h.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/applications?status=shortlisted", nil), admin)
	if rec.Code != http.StatusOK || len(body["applications"].([]any)) != 1 {
		t.Fatalf("filtered list: %d %v", rec.Code, body)
	}
	rec, body = h.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil), admin)
	stats := body["stats"].(map[string]any)
	if rec.Code != http.StatusOK || stats["total_applications"] != float64(1) || len(stats["recent_applications"].([]any)) != 1 {
		t.Fatalf("stats: %d %v", rec.Code, body)
	}
}

func TestSubmitRejectsBadEmail(t *testing.T) {
	h := newHarness(t)
	fields := applicantFields(h.job.ID)
	fields["email"] = "not-an-email"

	rec, body := h.do(t, submission(t, fields, applicantFiles), "")
	if rec.Code != http.StatusBadRequest || body["success"] != false {
		t.Fatalf("expected failure envelope, got %d %v", rec.Code, body)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "email") {
		t.Fatalf("expected message about email, got %q", msg)
	}
	if n := h.countApplications(t); n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(h.root, "cvs")); !os.IsNotExist(err) {
		t.Fatalf("expected no uploads, got %v", err)
	}
}

func TestSubmitFailures(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name    string
		fields  func(map[string]string)
		files   map[string][2]string
		status  int
		message string
	}{
		{"missing job", func(f map[string]string) { delete(f, "job_id") }, applicantFiles, http.StatusBadRequest, "Job ID required"},
		{"unknown job", func(f map[string]string) { f["job_id"] = "999" }, applicantFiles, http.StatusNotFound, "Job not found"},
		{"missing name", func(f map[string]string) { f["full_name"] = "  " }, applicantFiles, http.StatusBadRequest, "Field 'full_name' is required"},
		{"missing cv", func(map[string]string) {}, map[string][2]string{"motivation": applicantFiles["motivation"]}, http.StatusBadRequest, "CV file is required"},
		{"bad letter", func(map[string]string) {}, map[string][2]string{"cv": applicantFiles["cv"], "motivation": {"letter.exe", "x"}}, http.StatusBadRequest, "Failed to upload motivation letter: only pdf, doc and docx files are accepted"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := applicantFields(h.job.ID)
			tc.fields(fields)
			rec, body := h.do(t, submission(t, fields, tc.files), "")
			if rec.Code != tc.status || body["message"] != tc.message {
				t.Fatalf("got %d %v, want %d %q", rec.Code, body, tc.status, tc.message)
			}
		})
	}
	if n := h.countApplications(t); n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}
}

func TestUpdateStatusErrors(t *testing.T) {
	h := newHarness(t)
	admin := h.cookie(t, model.RoleAdmin)
	app := &model.Application{JobID: h.job.ID, FullName: "Jane Doe", CVFile: "a.pdf", MotivationFile: "b.pdf"}
	if err := h.mem.Applications().Create(context.Background(), app); err != nil {
		t.Fatalf("seed: %v", err)
	}
	id := strconv.FormatInt(app.ID, 10)

	cases := []struct {
		values  url.Values
		status  int
		message string
	}{
		{url.Values{"id": {id}, "status": {"archived"}}, http.StatusBadRequest, "Invalid status"},
		{url.Values{"id": {id}, "status": {"Hired"}}, http.StatusBadRequest, "Invalid status"},
		{url.Values{"id": {"999"}, "status": {"hired"}}, http.StatusNotFound, "Application not found"},
		{url.Values{"status": {"hired"}}, http.StatusBadRequest, "Application ID required"},
	}
	for _, tc := range cases {
		rec, body := h.do(t, form(http.MethodPost, "/api/admin/applications/status", tc.values), admin)
		if rec.Code != tc.status || body["message"] != tc.message {
			t.Fatalf("%v: got %d %v", tc.values, rec.Code, body)
		}
	}
	got, _ := h.mem.Applications().Get(context.Background(), app.ID)
	if got.Status != model.StatusPending {
		t.Fatalf("expected status unchanged, got %s", got.Status)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	h := newHarness(t)
	for token, want := range map[string]int{
		"":                           http.StatusUnauthorized,
		"unknown-token":              http.StatusUnauthorized,
		h.cookie(t, model.RoleUser):  http.StatusForbidden,
		h.cookie(t, model.RoleAdmin): http.StatusOK,
	} {
		rec, _ := h.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/applications", nil), token)
		if rec.Code != want {
			t.Fatalf("token %q: got %d, want %d", token, rec.Code, want)
		}
	}
	rec, _ := h.do(t, httptest.NewRequest(http.MethodGet, "/api/me/applications", nil), h.cookie(t, model.RoleAdmin))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected admin to be refused on user routes, got %d", rec.Code)
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	h := newHarness(t)
	rec, body := h.do(t, form(http.MethodPost, "/api/auth/register", url.Values{
		"full_name": {"Jane Doe"}, "phone": {"555"}, "email": {"jane@x.com"}, "password": {"secret1"},
	}), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %v", rec.Code, body)
	}

	rec, body = h.do(t, form(http.MethodPost, "/api/auth/login", url.Values{"email": {"jane@x.com"}, "password": {"wrong-pw"}}), "")
	if rec.Code != http.StatusUnauthorized || body["message"] != "Invalid email or password" {
		t.Fatalf("bad login: %d %v", rec.Code, body)
	}

	rec, _ = h.do(t, form(http.MethodPost, "/api/auth/login", url.Values{"email": {"jane@x.com"}, "password": {"secret1"}}), "")
	var token string
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			token = c.Value
		}
	}
	if rec.Code != http.StatusOK || token == "" {
		t.Fatalf("login: %d, cookie %q", rec.Code, token)
	}

	rec, body = h.do(t, submission(t, applicantFields(h.job.ID), applicantFiles), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %v", rec.Code, body)
	}
	rec, body = h.do(t, httptest.NewRequest(http.MethodGet, "/api/me/applications", nil), token)
	if rec.Code != http.StatusOK || len(body["applications"].([]any)) != 1 {
		t.Fatalf("my applications: %d %v", rec.Code, body)
	}
}

func TestDownloadRejectsBadLinks(t *testing.T) {
	h := newHarness(t)
	ref := "18f_0a1b.pdf"
	if err := os.MkdirAll(filepath.Join(h.root, "cvs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(h.root, "cvs", ref), []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}
	valid := h.signer.URL("cvs", ref)
	past := time.Now().Add(-time.Minute).Unix()
	expired := "/files/cvs/" + ref + "?expires=" + strconv.FormatInt(past, 10) + "&signature=" + h.signer.Sign("cvs", ref, past)

	cases := []struct {
		path   string
		status int
	}{
		{valid, http.StatusOK},
		{strings.Replace(valid, "signature=", "signature=0", 1), http.StatusForbidden},
		{strings.Replace(valid, "/cvs/", "/motivation_letters/", 1), http.StatusForbidden},
		{expired, http.StatusForbidden},
		{"/files/cvs/" + ref, http.StatusBadRequest},
		{"/files/photos/" + ref, http.StatusNotFound},
		{h.signer.URL("cvs", "missing.pdf"), http.StatusNotFound},
	}
	for _, tc := range cases {
		rec, _ := h.do(t, httptest.NewRequest(http.MethodGet, tc.path, nil), "")
		if rec.Code != tc.status {
			t.Fatalf("%s: got %d, want %d", tc.path, rec.Code, tc.status)
		}
	}
}

func TestJobEndpoints(t *testing.T) {
	h := newHarness(t)
	admin := h.cookie(t, model.RoleAdmin)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/jobs", strings.NewReader(`{"title":"Designer","company":"Acme","location":"Remote","description":"Draw","category_id":4,"salary_min":50000,"salary_max":70000}`))
	req.Header.Set("Content-Type", "application/json")
	rec, body := h.do(t, req, admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create job: %d %v", rec.Code, body)
	}
	job := body["job"].(map[string]any)
	if job["salary_range"] != "$50,000 - $70,000" {
		t.Fatalf("unexpected salary range %v", job["salary_range"])
	}
	id := strconv.Itoa(int(job["id"].(float64)))

	rec, body = h.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs?category=design", nil), "")
	if rec.Code != http.StatusOK || len(body["jobs"].([]any)) != 1 {
		t.Fatalf("list jobs: %d %v", rec.Code, body)
	}

	rec, _ = h.do(t, httptest.NewRequest(http.MethodDelete, "/api/admin/jobs/"+id, nil), admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete job: %d", rec.Code)
	}
	rec, _ = h.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected deleted job hidden, got %d", rec.Code)
	}
	rec, body = h.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/jobs/"+id, nil), admin)
	if rec.Code != http.StatusOK || body["job"].(map[string]any)["is_active"] != false {
		t.Fatalf("admin get: %d %v", rec.Code, body)
	}
}

func TestSubmitOversizedBodyIsUploadError(t *testing.T) {
	h := newHarness(t)
	files := map[string][2]string{
		"cv":         {"jane_cv.pdf", strings.Repeat("x", 4<<20)},
		"motivation": applicantFiles["motivation"],
	}
	rec, body := h.do(t, submission(t, applicantFields(h.job.ID), files), "")
	if rec.Code != http.StatusBadRequest || body["message"] != "Failed to upload CV file: CV file is too large" {
		t.Fatalf("got %d %v", rec.Code, body)
	}
	if n := h.countApplications(t); n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}
}

func TestRejectedExtensionMessageFollowsPolicy(t *testing.T) {
	h := newHarnessWithExtensions(t, []string{"pdf"})
	rec, body := h.do(t, submission(t, applicantFields(h.job.ID), applicantFiles), "")
	if rec.Code != http.StatusBadRequest || body["message"] != "Failed to upload motivation letter: only pdf files are accepted" {
		t.Fatalf("got %d %v", rec.Code, body)
	}
}

func TestProfileUpdateRefreshesSession(t *testing.T) {
	h := newHarness(t)
	rec, body := h.do(t, form(http.MethodPost, "/api/auth/register", url.Values{
		"full_name": {"Jane"}, "phone": {"555"}, "email": {"jane@x.com"}, "password": {"secret1"},
	}), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %v", rec.Code, body)
	}
	rec, _ = h.do(t, form(http.MethodPost, "/api/auth/login", url.Values{"email": {"jane@x.com"}, "password": {"secret1"}}), "")
	var token string
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			token = c.Value
		}
	}
	if token == "" {
		t.Fatalf("login did not set a session cookie: %d", rec.Code)
	}

	rec, body = h.do(t, form(http.MethodPut, "/api/me/profile", url.Values{
		"full_name": {"Jane Doe"}, "phone": {"555"}, "email": {"jane.doe@x.com"},
	}), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("update profile: %d %v", rec.Code, body)
	}
	rec, body = h.do(t, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil), token)
	info, _ := body["user_info"].(map[string]any)
	if rec.Code != http.StatusOK || info["name"] != "Jane Doe" || info["email"] != "jane.doe@x.com" {
		t.Fatalf("expected refreshed session, got %d %v", rec.Code, body)
	}
}

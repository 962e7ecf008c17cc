package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/pathfinder/internal/apperr"
	"github.com/dharsanguruparan/pathfinder/internal/docstore"
	"github.com/dharsanguruparan/pathfinder/internal/model"
	"github.com/dharsanguruparan/pathfinder/internal/validate"
	"github.com/dharsanguruparan/pathfinder/internal/workflow"
)

// applicationView adds the display fields the dashboard renders.
type applicationView struct {
	model.Application
	StatusLabel   string `json:"status_label"`
	StatusColor   string `json:"status_color"`
	AppliedAgo    string `json:"applied_ago"`
	CVURL         string `json:"cv_url,omitempty"`
	MotivationURL string `json:"motivation_url,omitempty"`
}

func newApplicationView(app model.Application) applicationView {
	return applicationView{
		Application: app,
		StatusLabel: app.Status.Label(),
		StatusColor: app.Status.Color(),
		AppliedAgo:  humanize.Time(app.AppliedAt),
	}
}

func applicationViews(apps []model.Application) []applicationView {
	out := make([]applicationView, 0, len(apps))
	for _, app := range apps {
		out = append(out, newApplicationView(app))
	}
	return out
}

// formUpload opens a multipart file. A missing part yields an empty Upload,
// which the document store reports as missing.
func formUpload(c *gin.Context, field string) (docstore.Upload, func()) {
	fh, err := c.FormFile(field)
	if err != nil {
		return docstore.Upload{}, func() {}
	}
	f, err := fh.Open()
	if err != nil {
		return docstore.Upload{}, func() {}
	}
	return docstore.Upload{Filename: fh.Filename, Body: f, Size: fh.Size}, closer(f)
}

func closer(f multipart.File) func() {
	return func() { _ = f.Close() }
}

func (s *Server) handleSubmit(c *gin.Context) {
	// Two documents plus the text fields.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*s.cfg.MaxFileSize+1<<20)
	if _, err := c.MultipartForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			// The parse stops at the cap without naming the part; report it
			// against the CV.
			fail(c, &apperr.UploadError{Which: "cv", Err: docstore.ErrTooLarge}, "")
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			failWith(c, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	jobID, valid := parseID(strings.TrimSpace(c.PostForm("job_id")))
	if !valid {
		failWith(c, http.StatusBadRequest, "Job ID required")
		return
	}
	cv, closeCV := formUpload(c, "cv")
	defer closeCV()
	letter, closeLetter := formUpload(c, "motivation")
	defer closeLetter()

	app, err := s.deps.Applications.Submit(c.Request.Context(), identity(c), workflow.SubmitRequest{
		JobID: jobID,
		Form: validate.ApplicantForm{
			FullName:       c.PostForm("full_name"),
			Address:        c.PostForm("address"),
			Phone:          c.PostForm("phone"),
			Email:          c.PostForm("email"),
			AdditionalInfo: c.PostForm("additional_info"),
		},
		CV:         cv,
		Motivation: letter,
	})
	if err != nil {
		fail(c, err, "Failed to submit application")
		return
	}
	ok(c, http.StatusOK, "Application submitted successfully", gin.H{"application_id": app.ID})
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	id, valid := parseID(c.PostForm("id"))
	if !valid {
		failWith(c, http.StatusBadRequest, "Application ID required")
		return
	}
	if err := s.deps.Applications.UpdateStatus(c.Request.Context(), id, c.PostForm("status")); err != nil {
		fail(c, err, "Failed to update application status")
		return
	}
	ok(c, http.StatusOK, "Application status updated", nil)
}

func (s *Server) handleGetApplication(c *gin.Context) {
	id, valid := parseID(c.Param("id"))
	if !valid {
		failWith(c, http.StatusNotFound, "Application not found")
		return
	}
	app, err := s.deps.Applications.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err, "Failed to fetch application")
		return
	}
	view := newApplicationView(*app)
	view.CVURL = s.deps.Signer.URL(docstore.CategoryCV.Dir(), app.CVFile)
	view.MotivationURL = s.deps.Signer.URL(docstore.CategoryMotivation.Dir(), app.MotivationFile)
	ok(c, http.StatusOK, "", gin.H{"application": view})
}

func (s *Server) handleListApplications(c *gin.Context) {
	apps, err := s.deps.Applications.List(c.Request.Context(), c.Query("status"), queryLimit(c))
	if err != nil {
		fail(c, err, "Failed to fetch applications")
		return
	}
	ok(c, http.StatusOK, "", gin.H{"applications": applicationViews(apps)})
}

func (s *Server) handleJobApplications(c *gin.Context) {
	id, valid := parseID(c.Param("id"))
	if !valid {
		failWith(c, http.StatusNotFound, "Job not found")
		return
	}
	apps, err := s.deps.Applications.ListByJob(c.Request.Context(), id)
	if err != nil {
		fail(c, err, "Failed to fetch applications")
		return
	}
	ok(c, http.StatusOK, "", gin.H{"applications": applicationViews(apps)})
}

func (s *Server) handleMyApplications(c *gin.Context) {
	apps, err := s.deps.Applications.ListByUser(c.Request.Context(), identity(c).ID)
	if err != nil {
		fail(c, err, "Failed to fetch applications")
		return
	}
	ok(c, http.StatusOK, "", gin.H{"applications": applicationViews(apps)})
}

func (s *Server) handleApplicationStats(c *gin.Context) {
	stats, err := s.deps.Applications.Stats(c.Request.Context())
	if err != nil {
		fail(c, err, "Failed to fetch statistics")
		return
	}
	ok(c, http.StatusOK, "", gin.H{"stats": stats})
}

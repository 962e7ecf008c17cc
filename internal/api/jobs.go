package api

import (
	"context"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/pathfinder/internal/apperr"
	"github.com/dharsanguruparan/pathfinder/internal/catalog"
	"github.com/dharsanguruparan/pathfinder/internal/model"
)

type jobView struct {
	model.Job
	SalaryRange string `json:"salary_range"`
	CreatedAgo  string `json:"created_ago"`
}

func newJobView(job model.Job) jobView {
	return jobView{
		Job:         job,
		SalaryRange: catalog.SalaryRange(job.SalaryMin, job.SalaryMax),
		CreatedAgo:  humanize.Time(job.CreatedAt),
	}
}

// jobRequest is the admin create/update body.
type jobRequest struct {
	Title        string `json:"title"`
	Company      string `json:"company"`
	Location     string `json:"location"`
	Description  string `json:"description"`
	Requirements string `json:"requirements"`
	SalaryMin    *int64 `json:"salary_min"`
	SalaryMax    *int64 `json:"salary_max"`
	JobType      string `json:"job_type"`
	CategoryID   int64  `json:"category_id"`
}

func (r jobRequest) input() catalog.JobInput {
	return catalog.JobInput{
		Title:        r.Title,
		Company:      r.Company,
		Location:     r.Location,
		Description:  r.Description,
		Requirements: r.Requirements,
		SalaryMin:    r.SalaryMin,
		SalaryMax:    r.SalaryMax,
		JobType:      r.JobType,
		CategoryID:   r.CategoryID,
	}
}

func (s *Server) handleListJobs(c *gin.Context) {
	jobs, err := s.deps.Jobs.List(c.Request.Context(), model.JobFilter{
		CategorySlug: c.Query("category"),
		Search:       c.Query("search"),
		Limit:        queryLimit(c),
	})
	if err != nil {
		fail(c, err, "Failed to fetch jobs")
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, newJobView(job))
	}
	ok(c, http.StatusOK, "", gin.H{"jobs": views})
}

func (s *Server) handleGetJob(c *gin.Context) {
	s.writeJob(c, s.deps.Jobs.Get)
}

func (s *Server) handleAdminGetJob(c *gin.Context) {
	s.writeJob(c, s.deps.Jobs.AdminGet)
}

func (s *Server) writeJob(c *gin.Context, get func(context.Context, int64) (*model.Job, error)) {
	id, valid := parseID(c.Param("id"))
	if !valid {
		fail(c, apperr.NotFound("Job"), "")
		return
	}
	job, err := get(c.Request.Context(), id)
	if err != nil {
		fail(c, err, "Failed to fetch job")
		return
	}
	ok(c, http.StatusOK, "", gin.H{"job": newJobView(*job)})
}

func (s *Server) handleCategories(c *gin.Context) {
	cats, err := s.deps.Jobs.Categories(c.Request.Context())
	if err != nil {
		fail(c, err, "Failed to fetch categories")
		return
	}
	ok(c, http.StatusOK, "", gin.H{"categories": cats})
}

func (s *Server) handleCreateJob(c *gin.Context) {
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failWith(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	job, err := s.deps.Jobs.Create(c.Request.Context(), req.input())
	if err != nil {
		fail(c, err, "Failed to create job")
		return
	}
	ok(c, http.StatusCreated, "Job created successfully", gin.H{"job": newJobView(*job)})
}

func (s *Server) handleUpdateJob(c *gin.Context) {
	id, valid := parseID(c.Param("id"))
	if !valid {
		fail(c, apperr.NotFound("Job"), "")
		return
	}
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failWith(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	job, err := s.deps.Jobs.Update(c.Request.Context(), id, req.input())
	if err != nil {
		fail(c, err, "Failed to update job")
		return
	}
	ok(c, http.StatusOK, "Job updated successfully", gin.H{"job": newJobView(*job)})
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	id, valid := parseID(c.Param("id"))
	if !valid {
		fail(c, apperr.NotFound("Job"), "")
		return
	}
	if err := s.deps.Jobs.Delete(c.Request.Context(), id); err != nil {
		fail(c, err, "Failed to delete job")
		return
	}
	ok(c, http.StatusOK, "Job deleted successfully", nil)
}

func (s *Server) handleJobStats(c *gin.Context) {
	stats, err := s.deps.Jobs.Stats(c.Request.Context())
	if err != nil {
		fail(c, err, "Failed to fetch statistics")
		return
	}
	ok(c, http.StatusOK, "", gin.H{"stats": stats})
}

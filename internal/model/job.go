package model

import "time"

// DefaultJobType is applied when a posting does not specify one.
const DefaultJobType = "Full-time"

// Job is a posting managed by administrators. Deleting a job only clears
// IsActive.
type Job struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Company      string    `json:"company"`
	Location     string    `json:"location"`
	Description  string    `json:"description"`
	Requirements string    `json:"requirements"`
	SalaryMin    *int64    `json:"salary_min"`
	SalaryMax    *int64    `json:"salary_max"`
	JobType      string    `json:"job_type"`
	CategoryID   int64     `json:"category_id"`
	CategoryName string    `json:"category_name,omitempty"`
	CategorySlug string    `json:"category_slug,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Category is read-only reference data.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// JobFilter narrows the public job listing.
type JobFilter struct {
	CategorySlug string
	Search       string
	Limit        int
}

// CategoryCount is one row of the jobs-per-category report.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// RecentJob is the compact row shown on the dashboard.
type RecentJob struct {
	Title     string    `json:"title"`
	Company   string    `json:"company"`
	CreatedAt time.Time `json:"created_at"`
}

// JobStats aggregates posting counts for reporting.
type JobStats struct {
	TotalJobs         int64           `json:"total_jobs"`
	TotalApplications int64           `json:"total_applications"`
	ByCategory        []CategoryCount `json:"jobs_by_category"`
	Recent            []RecentJob     `json:"recent_jobs"`
}

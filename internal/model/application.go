// Package model contains the struct definitions shared across packages.
package model

import (
	"strings"
	"time"
)

// Status describes where an application sits in the review lifecycle. Any
// status may follow any other; only membership in the set is enforced.
type Status string

const (
	StatusPending     Status = "pending"
	StatusReviewed    Status = "reviewed"
	StatusShortlisted Status = "shortlisted"
	StatusRejected    Status = "rejected"
	StatusHired       Status = "hired"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{StatusPending, StatusReviewed, StatusShortlisted, StatusRejected, StatusHired}

// ParseStatus trims the candidate and reports whether it names a known status.
// Matching is exact: "Hired" is rejected just like "archived".
func ParseStatus(s string) (Status, bool) {
	candidate := Status(strings.TrimSpace(s))
	for _, st := range Statuses {
		if st == candidate {
			return st, true
		}
	}
	return "", false
}

// Label returns the display form used by the admin dashboard.
func (s Status) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

var statusColors = map[Status]string{
	StatusPending:     "orange",
	StatusReviewed:    "blue",
	StatusShortlisted: "green",
	StatusRejected:    "red",
	StatusHired:       "purple",
}

// Color is the badge color the dashboard uses for s.
func (s Status) Color() string {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return "gray"
}

// Application is a job seeker's submission for one posting.
type Application struct {
	ID             int64     `json:"id"`
	JobID          int64     `json:"job_id"`
	UserID         *int64    `json:"user_id,omitempty"`
	FullName       string    `json:"full_name"`
	Address        string    `json:"address"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email"`
	CVFile         string    `json:"cv_file"`
	MotivationFile string    `json:"motivation_file"`
	AdditionalInfo string    `json:"additional_info"`
	Status         Status    `json:"status"`
	AppliedAt      time.Time `json:"applied_at"`
	// CVText is filled in by the background indexer and never serialized.
	CVText string `json:"-"`

	// Denormalized from the job row on reads.
	JobTitle    string `json:"job_title,omitempty"`
	JobCompany  string `json:"company,omitempty"`
	JobLocation string `json:"location,omitempty"`
}

// ApplicationFilter narrows application listings. Zero values mean "any".
type ApplicationFilter struct {
	Status Status
	JobID  int64
	UserID int64
	Limit  int
}

// RecentApplication is the compact row shown on the dashboard.
type RecentApplication struct {
	FullName  string    `json:"full_name"`
	JobTitle  string    `json:"title"`
	AppliedAt time.Time `json:"applied_at"`
}

// ApplicationStats aggregates application counts for reporting.
type ApplicationStats struct {
	Total    int64               `json:"total_applications"`
	Pending  int64               `json:"pending_applications"`
	Reviewed int64               `json:"reviewed_applications"`
	Hired    int64               `json:"hired_applications"`
	ByStatus map[Status]int64    `json:"applications_by_status"`
	Recent   []RecentApplication `json:"recent_applications"`
}

// NewApplicationStats derives the headline counters from per-status counts.
func NewApplicationStats(byStatus map[Status]int64, recent []RecentApplication) ApplicationStats {
	stats := ApplicationStats{ByStatus: byStatus, Recent: recent}
	if stats.ByStatus == nil {
		stats.ByStatus = map[Status]int64{}
	}
	if stats.Recent == nil {
		stats.Recent = []RecentApplication{}
	}
	for _, n := range stats.ByStatus {
		stats.Total += n
	}
	stats.Pending = stats.ByStatus[StatusPending]
	stats.Reviewed = stats.ByStatus[StatusReviewed]
	stats.Hired = stats.ByStatus[StatusHired]
	return stats
}

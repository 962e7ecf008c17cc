// Package storage contains an in-memory implementation of the repositories.
// The API server falls back to it when no database is configured, and the
// service tests run against it.
package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dharsanguruparan/pathfinder/internal/model"
	"github.com/dharsanguruparan/pathfinder/internal/repository"
)

// DefaultCategories mirrors the rows seeded by the SQL schema.
var DefaultCategories = []model.Category{
	{ID: 1, Name: "Technology", Slug: "technology"},
	{ID: 2, Name: "Marketing", Slug: "marketing"},
	{ID: 3, Name: "Sales", Slug: "sales"},
	{ID: 4, Name: "Design", Slug: "design"},
	{ID: 5, Name: "Finance", Slug: "finance"},
	{ID: 6, Name: "Healthcare", Slug: "healthcare"},
}

// MemoryStore keeps every table in maps guarded by one RWMutex.
type MemoryStore struct {
	mu         sync.RWMutex
	categories []model.Category
	jobs       map[int64]*model.Job
	apps       map[int64]*model.Application
	users      map[int64]*model.User
	admins     map[int64]*model.Admin
	lastID     int64
}

// NewMemoryStore constructs a MemoryStore seeded with the default categories.
func NewMemoryStore() *MemoryStore {
	cats := make([]model.Category, len(DefaultCategories))
	copy(cats, DefaultCategories)
	return &MemoryStore{
		categories: cats,
		jobs:       make(map[int64]*model.Job),
		apps:       make(map[int64]*model.Application),
		users:      make(map[int64]*model.User),
		admins:     make(map[int64]*model.Admin),
	}
}

// nextID must be called with the write lock held.
func (m *MemoryStore) nextID() int64 {
	m.lastID++
	return m.lastID
}

// Jobs returns the job repository view.
func (m *MemoryStore) Jobs() *JobStore { return &JobStore{m: m} }

// Applications returns the application repository view.
func (m *MemoryStore) Applications() *ApplicationStore { return &ApplicationStore{m: m} }

// Users returns the user and admin repository view.
func (m *MemoryStore) Users() *UserStore { return &UserStore{m: m} }

func (m *MemoryStore) category(id int64) (model.Category, bool) {
	for _, c := range m.categories {
		if c.ID == id {
			return c, true
		}
	}
	return model.Category{}, false
}

// JobStore implements the job repository on a MemoryStore.
type JobStore struct{ m *MemoryStore }

func (s *JobStore) view(job *model.Job) model.Job {
	out := *job
	if c, ok := s.m.category(job.CategoryID); ok {
		out.CategoryName, out.CategorySlug = c.Name, c.Slug
	}
	return out
}

func (s *JobStore) GetActive(_ context.Context, id int64) (*model.Job, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	job, ok := s.m.jobs[id]
	if !ok || !job.IsActive {
		return nil, repository.ErrNotFound
	}
	out := s.view(job)
	return &out, nil
}

func (s *JobStore) Get(_ context.Context, id int64) (*model.Job, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	job, ok := s.m.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := s.view(job)
	return &out, nil
}

func (s *JobStore) List(_ context.Context, filter model.JobFilter) ([]model.Job, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	search := strings.ToLower(filter.Search)
	out := []model.Job{}
	for _, job := range s.m.jobs {
		if !job.IsActive {
			continue
		}
		v := s.view(job)
		if filter.CategorySlug != "" && v.CategorySlug != filter.CategorySlug {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(v.Title), search) &&
			!strings.Contains(strings.ToLower(v.Company), search) &&
			!strings.Contains(strings.ToLower(v.Description), search) {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *JobStore) Create(_ context.Context, job *model.Job) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	now := time.Now().UTC()
	job.ID = s.m.nextID()
	job.IsActive = true
	job.CreatedAt, job.UpdatedAt = now, now
	stored := *job
	s.m.jobs[job.ID] = &stored
	return nil
}

func (s *JobStore) Update(_ context.Context, job *model.Job) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	existing, ok := s.m.jobs[job.ID]
	if !ok {
		return repository.ErrNotFound
	}
	job.IsActive = existing.IsActive
	job.CreatedAt = existing.CreatedAt
	job.UpdatedAt = time.Now().UTC()
	stored := *job
	s.m.jobs[job.ID] = &stored
	return nil
}

func (s *JobStore) Deactivate(_ context.Context, id int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	job, ok := s.m.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	job.IsActive = false
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *JobStore) Categories(context.Context) ([]model.Category, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]model.Category, len(s.m.categories))
	copy(out, s.m.categories)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *JobStore) Stats(ctx context.Context) (model.JobStats, error) {
	cats, _ := s.Categories(ctx)
	active, _ := s.List(ctx, model.JobFilter{})
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	stats := model.JobStats{
		TotalJobs:         int64(len(active)),
		TotalApplications: int64(len(s.m.apps)),
		ByCategory:        []model.CategoryCount{},
		Recent:            []model.RecentJob{},
	}
	for _, c := range cats {
		cc := model.CategoryCount{Name: c.Name}
		for _, job := range active {
			if job.CategoryID == c.ID {
				cc.Count++
			}
		}
		stats.ByCategory = append(stats.ByCategory, cc)
	}
	for i, job := range active {
		if i == 5 {
			break
		}
		stats.Recent = append(stats.Recent, model.RecentJob{Title: job.Title, Company: job.Company, CreatedAt: job.CreatedAt})
	}
	return stats, nil
}

// ApplicationStore implements the application repository on a MemoryStore.
type ApplicationStore struct{ m *MemoryStore }

// view copies the row and joins the job columns. Caller holds a lock.
func (s *ApplicationStore) view(app *model.Application) model.Application {
	out := *app
	if job, ok := s.m.jobs[app.JobID]; ok {
		out.JobTitle, out.JobCompany, out.JobLocation = job.Title, job.Company, job.Location
	}
	if app.UserID != nil {
		uid := *app.UserID
		out.UserID = &uid
	}
	return out
}

func (s *ApplicationStore) Create(_ context.Context, app *model.Application) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	app.ID = s.m.nextID()
	app.Status = model.StatusPending
	app.AppliedAt = time.Now().UTC()
	stored := *app
	s.m.apps[app.ID] = &stored
	return nil
}

func (s *ApplicationStore) Get(_ context.Context, id int64) (*model.Application, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	app, ok := s.m.apps[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := s.view(app)
	return &out, nil
}

func (s *ApplicationStore) sorted() []model.Application {
	out := make([]model.Application, 0, len(s.m.apps))
	for _, app := range s.m.apps {
		out = append(out, s.view(app))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AppliedAt.Equal(out[j].AppliedAt) {
			return out[i].AppliedAt.After(out[j].AppliedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *ApplicationStore) List(_ context.Context, filter model.ApplicationFilter) ([]model.Application, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := []model.Application{}
	for _, app := range s.sorted() {
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		if filter.JobID > 0 && app.JobID != filter.JobID {
			continue
		}
		if filter.UserID > 0 && (app.UserID == nil || *app.UserID != filter.UserID) {
			continue
		}
		out = append(out, app)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *ApplicationStore) UpdateStatus(_ context.Context, id int64, status model.Status) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	app, ok := s.m.apps[id]
	if !ok {
		return repository.ErrNotFound
	}
	app.Status = status
	return nil
}

func (s *ApplicationStore) SetCVText(_ context.Context, id int64, text string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	app, ok := s.m.apps[id]
	if !ok {
		return repository.ErrNotFound
	}
	app.CVText = text
	return nil
}

func (s *ApplicationStore) CountByStatus(context.Context) (map[model.Status]int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := map[model.Status]int64{}
	for _, app := range s.m.apps {
		out[app.Status]++
	}
	return out, nil
}

func (s *ApplicationStore) Recent(_ context.Context, n int) ([]model.RecentApplication, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := []model.RecentApplication{}
	for _, app := range s.sorted() {
		if len(out) == n {
			break
		}
		out = append(out, model.RecentApplication{FullName: app.FullName, JobTitle: app.JobTitle, AppliedAt: app.AppliedAt})
	}
	return out, nil
}

func (s *ApplicationStore) ReferencedFiles(context.Context) (cvs, letters map[string]struct{}, err error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	cvs, letters = map[string]struct{}{}, map[string]struct{}{}
	for _, app := range s.m.apps {
		cvs[app.CVFile] = struct{}{}
		letters[app.MotivationFile] = struct{}{}
	}
	return cvs, letters, nil
}

// UserStore implements the user repository on a MemoryStore.
type UserStore struct{ m *MemoryStore }

// emailTaken must be called with a lock held.
func (s *UserStore) emailTaken(email string, except int64) bool {
	for _, u := range s.m.users {
		if u.ID != except && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (s *UserStore) CreateUser(_ context.Context, u *model.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.emailTaken(u.Email, 0) {
		return repository.ErrDuplicate
	}
	u.ID = s.m.nextID()
	u.CreatedAt = time.Now().UTC()
	stored := *u
	s.m.users[u.ID] = &stored
	return nil
}

func (s *UserStore) UserByEmail(_ context.Context, email string) (*model.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, u := range s.m.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *UserStore) UserByID(_ context.Context, id int64) (*model.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *UserStore) UpdateUser(_ context.Context, u *model.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	existing, ok := s.m.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if s.emailTaken(u.Email, u.ID) {
		return repository.ErrDuplicate
	}
	existing.FullName, existing.Phone, existing.Email = u.FullName, u.Phone, u.Email
	if u.PasswordHash != "" {
		existing.PasswordHash = u.PasswordHash
	}
	return nil
}

func (s *UserStore) AdminByEmail(_ context.Context, email string) (*model.Admin, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, a := range s.m.admins {
		if strings.EqualFold(a.Email, email) {
			out := *a
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *UserStore) CreateAdmin(_ context.Context, a *model.Admin) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.admins {
		if strings.EqualFold(existing.Email, a.Email) {
			return repository.ErrDuplicate
		}
	}
	a.ID = s.m.nextID()
	stored := *a
	s.m.admins[a.ID] = &stored
	return nil
}

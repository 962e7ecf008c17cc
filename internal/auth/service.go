// Package auth registers job seekers and signs users and administrators in
// and out.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/dharsanguruparan/pathfinder/internal/apperr"
	"github.com/dharsanguruparan/pathfinder/internal/logger"
	"github.com/dharsanguruparan/pathfinder/internal/model"
	"github.com/dharsanguruparan/pathfinder/internal/repository"
	"github.com/dharsanguruparan/pathfinder/internal/session"
	"github.com/dharsanguruparan/pathfinder/internal/validate"
)

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 6

// Users is the persistence the auth service needs.
type Users interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
	AdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	CreateAdmin(ctx context.Context, a *model.Admin) error
}

// Registration is the sign-up form.
type Registration struct {
	FullName string
	Phone    string
	Email    string
	Password string
}

// ProfileUpdate is the profile form. An empty NewPassword keeps the old one.
type ProfileUpdate struct {
	FullName    string
	Phone       string
	Email       string
	NewPassword string
}

// Service holds the user repository and the session store.
type Service struct {
	users    Users
	sessions session.Store
	cost     int
	log      zerolog.Logger
}

func NewService(users Users, sessions session.Store) *Service {
	return &Service{users: users, sessions: sessions, cost: bcrypt.DefaultCost, log: logger.Get("auth")}
}

// Register creates a job seeker account. It does not sign the user in.
func (s *Service) Register(ctx context.Context, in Registration) (*model.User, error) {
	u := &model.User{
		FullName: validate.StripTags(in.FullName),
		Phone:    validate.StripTags(in.Phone),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
	}
	if u.FullName == "" || u.Phone == "" || u.Email == "" || in.Password == "" {
		return nil, apperr.Invalid("form", "All fields are required")
	}
	if !validate.IsEmail(u.Email) {
		return nil, apperr.Invalid("email", "Invalid email format")
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, &apperr.ConflictError{Message: "Email already registered"}
		}
		s.log.Error().Err(err).Msg("register user failed")
		return nil, apperr.Persistence("register", err)
	}
	s.log.Info().Int64("user_id", u.ID).Msg("user registered")
	return u, nil
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < MinPasswordLen {
		return "", apperr.Invalid("password", "Password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperr.Invalid("password", "Password must be at most 72 bytes")
	}
	if err != nil {
		return "", apperr.Persistence("hash password", err)
	}
	return string(hash), nil
}

func checkCredentials(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", apperr.Invalid("form", "Email and password are required")
	}
	if !validate.IsEmail(email) {
		return "", apperr.Invalid("email", "Invalid email format")
	}
	return email, nil
}

// Login signs a job seeker in and returns the new session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *session.Identity, error) {
	email, err := checkCredentials(email, password)
	if err != nil {
		return "", nil, err
	}
	u, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, apperr.Persistence("login", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, apperr.ErrInvalidCredentials
	}
	return s.open(ctx, session.Identity{ID: u.ID, Role: model.RoleUser, Name: u.FullName, Email: u.Email})
}

// AdminLogin signs an administrator in and returns the new session token.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (string, *session.Identity, error) {
	email, err := checkCredentials(email, password)
	if err != nil {
		return "", nil, err
	}
	a, err := s.users.AdminByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, apperr.Persistence("admin login", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		s.log.Warn().Str("email", email).Msg("admin login rejected")
		return "", nil, apperr.ErrInvalidCredentials
	}
	return s.open(ctx, session.Identity{ID: a.ID, Role: model.RoleAdmin, Name: "Administrator", Email: a.Email})
}

func (s *Service) open(ctx context.Context, id session.Identity) (string, *session.Identity, error) {
	token, err := s.sessions.Create(ctx, id)
	if err != nil {
		s.log.Error().Err(err).Msg("create session failed")
		return "", nil, apperr.Persistence("create session", err)
	}
	return token, &id, nil
}

// Logout drops the session. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Delete(ctx, token); err != nil {
		return apperr.Persistence("delete session", err)
	}
	return nil
}

// Resolve maps a session token to its identity. It returns nil for missing,
// unknown or expired tokens.
func (s *Service) Resolve(ctx context.Context, token string) *session.Identity {
	if token == "" {
		return nil
	}
	id, err := s.sessions.Get(ctx, token)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			s.log.Warn().Err(err).Msg("session lookup failed")
		}
		return nil
	}
	return id
}

// Profile returns the signed-in user's account.
func (s *Service) Profile(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.users.UserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("User")
	}
	if err != nil {
		return nil, apperr.Persistence("load profile", err)
	}
	return u, nil
}

// UpdateProfile rewrites name, phone and email and optionally the password.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileUpdate) (*model.User, error) {
	u := &model.User{
		ID:       userID,
		FullName: validate.StripTags(in.FullName),
		Phone:    validate.StripTags(in.Phone),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
	}
	if u.FullName == "" {
		return nil, apperr.Required("full_name")
	}
	if !validate.IsEmail(u.Email) {
		return nil, apperr.Invalid("email", "Invalid email format")
	}
	if in.NewPassword != "" {
		hash, err := s.hash(in.NewPassword)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if err := s.users.UpdateUser(ctx, u); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, &apperr.ConflictError{Message: "Email already exists"}
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperr.NotFound("User")
		}
		return nil, apperr.Persistence("update profile", err)
	}
	return s.Profile(ctx, userID)
}

// RefreshSession rewrites the identity behind token after a profile change so
// the session check reports the new name and email.
func (s *Service) RefreshSession(ctx context.Context, token string, u *model.User) error {
	id := session.Identity{ID: u.ID, Role: model.RoleUser, Name: u.FullName, Email: u.Email}
	if err := s.sessions.Update(ctx, token, id); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return apperr.ErrUnauthorized
		}
		return apperr.Persistence("refresh session", err)
	}
	return nil
}

// CreateAdmin provisions an administrator account for the operator CLI.
func (s *Service) CreateAdmin(ctx context.Context, email, password string) (*model.Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validate.IsEmail(email) {
		return nil, apperr.Invalid("email", "Invalid email format")
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	a := &model.Admin{Email: email, PasswordHash: hash}
	if err := s.users.CreateAdmin(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, &apperr.ConflictError{Message: "Admin already exists"}
		}
		return nil, apperr.Persistence("create admin", err)
	}
	return a, nil
}

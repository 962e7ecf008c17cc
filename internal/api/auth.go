package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/pathfinder/internal/auth"
	"github.com/dharsanguruparan/pathfinder/internal/session"
)

type credentials struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

type registerRequest struct {
	FullName string `form:"full_name" json:"full_name"`
	Phone    string `form:"phone" json:"phone"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

type profileRequest struct {
	FullName    string `form:"full_name" json:"full_name"`
	Phone       string `form:"phone" json:"phone"`
	Email       string `form:"email" json:"email"`
	NewPassword string `form:"new_password" json:"new_password"`
}

func (s *Server) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, token, maxAge, "/", "", s.cfg.SecureCookies, true)
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		failWith(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	u, err := s.deps.Auth.Register(c.Request.Context(), auth.Registration{
		FullName: req.FullName,
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		fail(c, err, "Registration failed")
		return
	}
	ok(c, http.StatusCreated, "Registration successful", gin.H{"user": u})
}

func (s *Server) handleLogin(c *gin.Context) {
	s.login(c, s.deps.Auth.Login)
}

func (s *Server) handleAdminLogin(c *gin.Context) {
	s.login(c, s.deps.Auth.AdminLogin)
}

func (s *Server) login(c *gin.Context, signIn func(context.Context, string, string) (string, *session.Identity, error)) {
	var req credentials
	if err := c.ShouldBind(&req); err != nil {
		failWith(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	token, id, err := signIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err, "Login failed")
		return
	}
	s.setSessionCookie(c, token, int(s.cfg.SessionTTL.Seconds()))
	ok(c, http.StatusOK, "Login successful", gin.H{"user_info": id})
}

func (s *Server) handleLogout(c *gin.Context) {
	if token, err := c.Cookie(session.CookieName); err == nil && token != "" {
		if err := s.deps.Auth.Logout(c.Request.Context(), token); err != nil {
			fail(c, err, "Logout failed")
			return
		}
	}
	s.setSessionCookie(c, "", -1)
	ok(c, http.StatusOK, "Logged out", nil)
}

func (s *Server) handleSession(c *gin.Context) {
	id := identity(c)
	ok(c, http.StatusOK, "", gin.H{
		"logged_in": id != nil,
		"is_admin":  id.IsAdmin(),
		"is_user":   id.IsUser(),
		"user_info": id,
	})
}

func (s *Server) handleGetProfile(c *gin.Context) {
	u, err := s.deps.Auth.Profile(c.Request.Context(), identity(c).ID)
	if err != nil {
		fail(c, err, "Failed to load profile")
		return
	}
	ok(c, http.StatusOK, "", gin.H{"user": u})
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBind(&req); err != nil {
		failWith(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	u, err := s.deps.Auth.UpdateProfile(c.Request.Context(), identity(c).ID, auth.ProfileUpdate{
		FullName:    req.FullName,
		Phone:       req.Phone,
		Email:       req.Email,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		fail(c, err, "Failed to update profile")
		return
	}
	if token, err := c.Cookie(session.CookieName); err == nil {
		if err := s.deps.Auth.RefreshSession(c.Request.Context(), token, u); err != nil {
			s.log.Warn().Err(err).Int64("user_id", u.ID).Msg("refresh session after profile update failed")
		}
	}
	ok(c, http.StatusOK, "Profile updated successfully", gin.H{"user": u})
}

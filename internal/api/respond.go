package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/pathfinder/internal/apperr"
	"github.com/dharsanguruparan/pathfinder/internal/docstore"
	"github.com/dharsanguruparan/pathfinder/internal/logger"
)

// ok writes {success:true, message?, ...payload}.
func ok(c *gin.Context, status int, message string, payload gin.H) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

func failWith(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// fail maps a typed error to a status code and a caller-safe message.
// Anything unrecognised is logged and reported with generic.
func fail(c *gin.Context, err error, generic string) {
	var (
		verr *apperr.ValidationError
		nerr *apperr.NotFoundError
		uerr *apperr.UploadError
		cerr *apperr.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		failWith(c, http.StatusBadRequest, verr.Error())
	case errors.As(err, &nerr):
		failWith(c, http.StatusNotFound, nerr.Error())
	case errors.As(err, &uerr):
		failWith(c, http.StatusBadRequest, uploadMessage(uerr))
	case errors.As(err, &cerr):
		failWith(c, http.StatusConflict, cerr.Message)
	case errors.Is(err, apperr.ErrInvalidStatus):
		failWith(c, http.StatusBadRequest, "Invalid status")
	case errors.Is(err, apperr.ErrInvalidCredentials):
		failWith(c, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, apperr.ErrUnauthorized):
		failWith(c, http.StatusUnauthorized, "Not logged in")
	case errors.Is(err, apperr.ErrForbidden):
		failWith(c, http.StatusForbidden, "Access denied")
	default:
		_ = c.Error(err)
		log := logger.Get("api")
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		if generic == "" {
			generic = "Internal server error"
		}
		failWith(c, http.StatusInternalServerError, generic)
	}
}

func uploadMessage(e *apperr.UploadError) string {
	what, required, failed := "CV file", "CV file is required", "Failed to upload CV file"
	if e.Which == "motivation" {
		what, required, failed = "motivation letter", "Motivation letter is required", "Failed to upload motivation letter"
	}
	switch {
	case e.Missing:
		return required
	case errors.Is(e.Err, docstore.ErrExtensionNotAllowed):
		var xerr *docstore.ExtensionError
		if errors.As(e.Err, &xerr) && len(xerr.Allowed) > 0 {
			return failed + ": only " + joinList(xerr.Allowed) + " files are accepted"
		}
		return failed + ": file type not allowed"
	case errors.Is(e.Err, docstore.ErrTooLarge):
		return failed + ": " + what + " is too large"
	case errors.Is(e.Err, docstore.ErrEmpty):
		return failed + ": " + what + " is empty"
	}
	return failed
}

// joinList renders ["pdf","doc","docx"] as "pdf, doc and docx".
func joinList(items []string) string {
	if len(items) == 1 {
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

// parseID accepts only positive integer ids.
func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}

func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

package api

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/pathfinder/internal/docstore"
	"github.com/dharsanguruparan/pathfinder/internal/signing"
)

// handleDownload streams a stored document to the holder of a valid signed
// link issued by the application detail endpoint.
func (s *Server) handleDownload(c *gin.Context) {
	dir, ref := c.Param("category"), c.Param("ref")
	cat, known := docstore.ParseCategory(dir)
	if !known || !docstore.ValidReference(ref) {
		failWith(c, http.StatusNotFound, "File not found")
		return
	}
	if err := s.deps.Signer.Verify(cat.Dir(), ref, c.Query("expires"), c.Query("signature")); err != nil {
		status := http.StatusForbidden
		if errors.Is(err, signing.ErrMalformed) {
			status = http.StatusBadRequest
		}
		failWith(c, status, "Invalid or expired link")
		return
	}

	body, err := s.deps.Documents.Open(c.Request.Context(), cat, ref)
	if errors.Is(err, docstore.ErrNotFound) {
		failWith(c, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		fail(c, err, "Failed to open file")
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(filepath.Ext(ref))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, body, map[string]string{
		"Content-Disposition": `attachment; filename="` + ref + `"`,
	})
}

// Package docstore persists uploaded application documents (CVs and
// motivation letters) under generated, collision-free names and hands back
// the name as the durable reference stored on the application row.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/pathfinder/internal/config"
)

// Category selects the flat directory (or key prefix) a document lives in.
type Category string

const (
	CategoryCV         Category = "cv"
	CategoryMotivation Category = "motivation"
)

// Categories lists every category in a stable order.
var Categories = []Category{CategoryCV, CategoryMotivation}

// Dir returns the on-disk directory name or object key prefix.
func (c Category) Dir() string {
	switch c {
	case CategoryCV:
		return "cvs"
	case CategoryMotivation:
		return "motivation_letters"
	}
	return ""
}

// ParseCategory accepts either the category name or its directory name.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if s == string(c) || s == c.Dir() {
			return c, true
		}
	}
	return "", false
}

var (
	ErrMissingFile         = errors.New("no file provided")
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
	ErrTooLarge            = errors.New("file exceeds limit")
	ErrEmpty               = errors.New("empty file")
	ErrInvalidReference    = errors.New("invalid document reference")
	ErrNotFound            = errors.New("document not found")
)

// Upload is a single file received from a client. Size may be zero or
// negative when the client did not announce it.
type Upload struct {
	Filename string
	Body     io.Reader
	Size     int64
}

// Object describes a stored document as seen by List.
type Object struct {
	Ref     string
	Size    int64
	ModTime time.Time
}

// Store is implemented by every storage backend.
type Store interface {
	// Store validates and persists up, returning its generated reference.
	Store(ctx context.Context, cat Category, up Upload) (string, error)
	// Remove deletes a stored document. Failures are logged, never returned.
	Remove(ctx context.Context, cat Category, ref string)
	Open(ctx context.Context, cat Category, ref string) (io.ReadCloser, error)
	List(ctx context.Context, cat Category) ([]Object, error)
}

// Policy holds the checks shared by all backends.
type Policy struct {
	MaxSize    int64
	Extensions []string
}

// Check validates the upload metadata before any byte is written and returns
// the normalized extension.
func (p Policy) Check(up Upload) (string, error) {
	if up.Body == nil || strings.TrimSpace(up.Filename) == "" {
		return "", ErrMissingFile
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(up.Filename), "."))
	allowed := false
	for _, candidate := range p.Extensions {
		if candidate == ext {
			allowed = true
			break
		}
	}
	if ext == "" || !allowed {
		return "", &ExtensionError{Ext: ext, Allowed: p.Extensions}
	}
	if up.Size > p.MaxSize {
		return "", ErrTooLarge
	}
	return ext, nil
}

// ExtensionError reports a rejected extension together with the allow-list in
// force. It matches ErrExtensionNotAllowed under errors.Is.
type ExtensionError struct {
	Ext     string
	Allowed []string
}

func (e *ExtensionError) Error() string {
	return fmt.Sprintf("%s: %q", ErrExtensionNotAllowed, e.Ext)
}

func (e *ExtensionError) Unwrap() error { return ErrExtensionNotAllowed }

// NewReference generates "<unix-nanos-hex>_<uuid>.<ext>".
func NewReference(ext string) string {
	return strconv.FormatInt(time.Now().UnixNano(), 16) + "_" + uuid.NewString() + "." + ext
}

// ValidReference rejects anything that could escape the category directory.
func ValidReference(ref string) bool {
	if ref == "" || ref == "." || ref == ".." {
		return false
	}
	return !strings.ContainsAny(ref, `/\`) && !strings.Contains(ref, "..")
}

// New builds the backend selected by cfg.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	policy := Policy{MaxSize: cfg.MaxFileSize, Extensions: cfg.AllowedExtensions}
	switch cfg.StorageBackend {
	case config.BackendS3:
		store, err := NewObjectStore(cfg, policy)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendFilesystem, "":
		return NewFileStore(cfg.UploadDir, policy), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

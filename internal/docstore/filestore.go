package docstore

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/pathfinder/internal/logger"
)

// FileStore keeps documents below a root directory, one flat directory per
// category.
type FileStore struct {
	root   string
	policy Policy
	log    zerolog.Logger
}

// NewFileStore does not touch the disk; category directories are created on
// first write.
func NewFileStore(root string, policy Policy) *FileStore {
	return &FileStore{root: root, policy: policy, log: logger.Get("docstore")}
}

func (s *FileStore) path(cat Category, ref string) string {
	return filepath.Join(s.root, cat.Dir(), ref)
}

func (s *FileStore) Store(ctx context.Context, cat Category, up Upload) (string, error) {
	ext, err := s.policy.Check(up)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, cat.Dir())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	ref := NewReference(ext)
	path := filepath.Join(dir, ref)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", err
	}
	written, err := s.copyLimited(ctx, dst, up.Body)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err == nil && written == 0 {
		err = ErrEmpty
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return ref, nil
}

// copyLimited streams src into dst through a fixed buffer and stops as soon
// as the policy limit is crossed.
func (s *FileStore) copyLimited(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > s.policy.MaxSize {
				return written, ErrTooLarge
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return written, nil
			}
			return written, readErr
		}
	}
}

func (s *FileStore) Remove(_ context.Context, cat Category, ref string) {
	if !ValidReference(ref) {
		s.log.Warn().Str("category", string(cat)).Str("ref", ref).Msg("refusing to remove invalid reference")
		return
	}
	if err := os.Remove(s.path(cat, ref)); err != nil {
		s.log.Error().Err(err).Str("category", string(cat)).Str("ref", ref).Msg("remove document failed")
	}
}

func (s *FileStore) Open(_ context.Context, cat Category, ref string) (io.ReadCloser, error) {
	if !ValidReference(ref) {
		return nil, ErrInvalidReference
	}
	f, err := os.Open(s.path(cat, ref))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (s *FileStore) List(_ context.Context, cat Category) ([]Object, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, cat.Dir()))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]Object, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, Object{Ref: entry.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out, nil
}

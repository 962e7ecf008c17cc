package docstore

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/pathfinder/internal/config"
	"github.com/dharsanguruparan/pathfinder/internal/logger"
)

// ObjectStore keeps documents in a single S3/MinIO bucket. The category
// directory is used as key prefix so the layout matches FileStore.
type ObjectStore struct {
	client *minio.Client
	bucket string
	region string
	policy Policy
	log    zerolog.Logger
}

// NewObjectStore creates a MinIO client from the Config.
func NewObjectStore(cfg *config.Config, policy Policy) (*ObjectStore, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &ObjectStore{
		client: client,
		bucket: cfg.S3Bucket,
		region: cfg.S3Region,
		policy: policy,
		log:    logger.Get("docstore"),
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

func key(cat Category, ref string) string {
	return cat.Dir() + "/" + ref
}

func (s *ObjectStore) Store(ctx context.Context, cat Category, up Upload) (string, error) {
	ext, err := s.policy.Check(up)
	if err != nil {
		return "", err
	}
	if up.Size == 0 {
		return "", ErrEmpty
	}
	ref := NewReference(ext)
	body := up.Body
	size := up.Size
	if size > 0 {
		body = io.LimitReader(body, size)
	} else {
		// Unknown length: minio buffers multipart chunks, we only cap the stream.
		body = io.LimitReader(body, s.policy.MaxSize)
		size = -1
	}
	opts := minio.PutObjectOptions{ContentType: mime.TypeByExtension("." + ext)}
	info, err := s.client.PutObject(ctx, s.bucket, key(cat, ref), body, size, opts)
	if err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}
	if info.Size == 0 {
		s.Remove(ctx, cat, ref)
		return "", ErrEmpty
	}
	return ref, nil
}

func (s *ObjectStore) Remove(ctx context.Context, cat Category, ref string) {
	if !ValidReference(ref) {
		s.log.Warn().Str("category", string(cat)).Str("ref", ref).Msg("refusing to remove invalid reference")
		return
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key(cat, ref), minio.RemoveObjectOptions{}); err != nil {
		s.log.Error().Err(err).Str("category", string(cat)).Str("ref", ref).Msg("remove object failed")
	}
}

func (s *ObjectStore) Open(ctx context.Context, cat Category, ref string) (io.ReadCloser, error) {
	if !ValidReference(ref) {
		return nil, ErrInvalidReference
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key(cat, ref), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return obj, nil
}

func (s *ObjectStore) List(ctx context.Context, cat Category) ([]Object, error) {
	prefix := cat.Dir() + "/"
	var out []Object
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list objects: %w", info.Err)
		}
		ref := strings.TrimPrefix(info.Key, prefix)
		if !ValidReference(ref) {
			continue
		}
		out = append(out, Object{Ref: ref, Size: info.Size, ModTime: info.LastModified})
	}
	return out, nil
}

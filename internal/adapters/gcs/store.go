// Package gcs stores rendered report artifacts in a Google Cloud Storage
// bucket and issues V4 signed download URLs for them.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type Store struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

// NewStore opens a client for bucket. With an empty credentialsFile the
// application default credentials are used.
func NewStore(ctx context.Context, bucket, credentialsFile string, extra ...option.ClientOption) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	opts := append([]option.ClientOption(nil), extra...)
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("service account key not readable at %s: %w", credentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket, now: time.Now}, nil
}

func (s *Store) Close() error { return s.client.Close() }

// Put uploads body to key, replacing any existing object.
func (s *Store) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "private, no-store"

	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", s.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for gs://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// SignedURL returns a V4 GET URL for key valid for ttl. The signer is taken
// from the client's credentials.
func (s *Store) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	url, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: s.now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign gs://%s/%s: %w", s.bucket, key, err)
	}
	return url, nil
}

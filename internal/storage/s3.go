// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage persists generated PDFs to S3-compatible object
// storage. Uploads are size-reduced first, retried with exponential
// backoff, and are upserts by design: documents are regenerated
// idempotently, so re-uploading for an entity overwrites rather than
// errors. Deletes are idempotent and never fail the caller — document
// lifecycle must not block on storage cleanup.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"
)

// DefaultRetries is how many times a failed upload is retried after the
// first attempt.
const DefaultRetries = 3

// ReduceFunc shrinks PDF bytes before upload. Wired to pdf.Toolkit.Reduce
// in production. A reduction failure is a hard failure: the upload does
// not proceed with unreduced bytes.
type ReduceFunc func([]byte) ([]byte, error)

// UploadResult identifies a persisted document.
type UploadResult struct {
	PublicURL string
	Path      string
	Bucket    string
}

// objectAPI is the slice of the S3 client the uploader uses. *s3.Client
// satisfies it; tests substitute a fake.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds the uploader settings.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string

	// Bucket is fixed per document class; all lease documents share one.
	Bucket string

	// Collection is the object path prefix for the entity class,
	// e.g. "leases".
	Collection string

	// PublicURL is an optional CDN/direct URL for public objects.
	PublicURL string

	// Retries is the retry count after the first attempt; zero means
	// DefaultRetries. RetryBase is the first backoff wait (doubled each
	// retry); zero means one second.
	Retries   int
	RetryBase time.Duration
}

// Client uploads, lists, and deletes generated documents.
type Client struct {
	api      objectAPI
	cfg      Config
	reduce   ReduceFunc
	endpoint string

	// backoff builds a fresh retry schedule per upload. Split out so
	// tests can observe the waits.
	backoff func() retry.Backoff
	now     func() time.Time
}

// New creates an S3 storage client configured for path-style access.
// Returns (nil, nil) if endpoint or credentials are empty, allowing the
// service to start without storage.
func New(cfg Config, reduce ReduceFunc) (*Client, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, nil
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")

	s3Client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	})

	return newClient(cfg, s3Client, reduce), nil
}

func newClient(cfg Config, api objectAPI, reduce ReduceFunc) *Client {
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = "leases"
	}
	c := &Client{
		api:      api,
		cfg:      cfg,
		reduce:   reduce,
		endpoint: cfg.Endpoint,
		now:      time.Now,
	}
	c.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(uint64(cfg.Retries), retry.NewExponential(cfg.RetryBase))
	}
	return c
}

// Upload size-reduces and persists a generated PDF for entityID. The
// object path carries a timestamp suffix so repeated uploads for the
// same entity never collide; the PutObject itself is an upsert.
func (c *Client) Upload(ctx context.Context, entityID string, data []byte) (UploadResult, error) {
	reduced, err := c.reduceBytes(data)
	if err != nil {
		return UploadResult{}, err
	}

	key := fmt.Sprintf("%s/%s/%s-%d.pdf", c.cfg.Collection, entityID, entityID, c.now().UnixMilli())

	attempt := 0
	err = retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempt++
		_, perr := c.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:       aws.String(c.cfg.Bucket),
			Key:          aws.String(key),
			Body:         bytes.NewReader(reduced),
			ContentType:  aws.String("application/pdf"),
			CacheControl: aws.String("private, max-age=3600"),
		})
		if perr != nil {
			slog.Warn("document upload attempt failed",
				"entity", entityID, "attempt", attempt, "error", perr)
			return retry.RetryableError(perr)
		}
		return nil
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload document for %s after %d attempts: %w", entityID, attempt, err)
	}

	slog.Info("document uploaded", "entity", entityID, "path", key, "bytes", len(reduced), "attempts", attempt)
	return UploadResult{
		PublicURL: c.fileURL(key),
		Path:      key,
		Bucket:    c.cfg.Bucket,
	}, nil
}

// Delete removes every stored document for entityID. Listing zero
// objects is success. Failures are logged, never returned.
func (c *Client) Delete(ctx context.Context, entityID string) {
	keys, err := c.list(ctx, entityID)
	if err != nil {
		slog.Warn("document delete list failed", "entity", entityID, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}

	for _, key := range keys {
		_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.cfg.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			slog.Warn("document delete failed", "entity", entityID, "path", key, "error", err)
			continue
		}
		slog.Debug("document deleted", "entity", entityID, "path", key)
	}
}

// GetURL returns the public URL of the newest stored document for
// entityID, or "" when none exists or the lookup fails, so callers can
// treat "no document yet" uniformly.
func (c *Client) GetURL(ctx context.Context, entityID string) string {
	keys, err := c.list(ctx, entityID)
	if err != nil {
		slog.Warn("document url lookup failed", "entity", entityID, "error", err)
		return ""
	}
	if len(keys) == 0 {
		return ""
	}
	// Keys end in a millisecond timestamp, so the lexicographic max is
	// the newest upload.
	sort.Strings(keys)
	return c.fileURL(keys[len(keys)-1])
}

// list enumerates object keys under the entity's prefix.
func (c *Client) list(ctx context.Context, entityID string) ([]string, error) {
	prefix := fmt.Sprintf("%s/%s/", c.cfg.Collection, entityID)

	var keys []string
	var continuation *string
	for {
		out, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.cfg.Bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuation = out.NextContinuationToken
	}
	return keys, nil
}

// reduceBytes applies the size-reduction step, logging the ratio.
func (c *Client) reduceBytes(data []byte) ([]byte, error) {
	if c.reduce == nil {
		return data, nil
	}
	reduced, err := c.reduce(data)
	if err != nil {
		return nil, fmt.Errorf("reduce document size: %w", err)
	}
	ratio := 1.0
	if len(data) > 0 {
		ratio = float64(len(reduced)) / float64(len(data))
	}
	slog.Info("document size reduced",
		"before_bytes", len(data), "after_bytes", len(reduced), "ratio", fmt.Sprintf("%.2f", ratio))
	return reduced, nil
}

// fileURL builds the public URL for an object key, preferring the
// configured CDN URL over path-style endpoint addressing.
func (c *Client) fileURL(key string) string {
	if c.cfg.PublicURL != "" {
		return c.cfg.PublicURL + "/" + key
	}
	return c.endpoint + "/" + c.cfg.Bucket + "/" + key
}

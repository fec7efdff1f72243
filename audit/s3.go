package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3FlushBatch is the record count that triggers an object upload.
const s3FlushBatch = 64

// S3Config holds configuration for the S3 trail backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// s3API is the slice of the S3 client the sink uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink batches records and uploads them as sequenced JSON-lines
// objects under <prefix>/<session>/<seq>.jsonl.
type S3Sink struct {
	client    s3API
	cfg       S3Config
	sessionID string

	mu     sync.Mutex
	buf    []Record
	seq    int
	closed bool
}

// NewS3Sink creates a sink against the real S3 API.
// Uses the AWS SDK default credential chain (env vars, shared config,
// IAM role).
func NewS3Sink(ctx context.Context, cfg S3Config, sessionID string) (*S3Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, wrapStorageError(err, "init", cfg.Bucket)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return newS3Sink(s3.NewFromConfig(awsConfig, s3Opts...), cfg, sessionID), nil
}

// newS3Sink wires an S3 sink over any s3API. Split out for tests.
func newS3Sink(client s3API, cfg S3Config, sessionID string) *S3Sink {
	return &S3Sink{client: client, cfg: cfg, sessionID: sessionID}
}

// Append implements Sink. Records are buffered and flushed in batches.
func (s *S3Sink) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return wrapStorageError(errors.New("sink closed"), "append", s.key(s.seq))
	}
	s.buf = append(s.buf, rec)
	if len(s.buf) >= s3FlushBatch {
		return s.flushLocked()
	}
	return nil
}

// Flush uploads any buffered records immediately.
func (s *S3Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// Close flushes the remaining buffer and seals the sink.
func (s *S3Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	err := s.flushLocked()
	s.closed = true
	return err
}

func (s *S3Sink) flushLocked() error {
	if len(s.buf) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, rec := range s.buf {
		if err := enc.Encode(rec); err != nil {
			return wrapStorageError(err, "flush", s.key(s.seq))
		}
	}

	key := s.key(s.seq)
	_, err := s.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: &s.cfg.Bucket,
		Key:    &key,
		Body:   bytes.NewReader(body.Bytes()),
	})
	if err != nil {
		return wrapStorageError(err, "flush", key)
	}

	s.buf = s.buf[:0]
	s.seq++
	return nil
}

func (s *S3Sink) key(seq int) string {
	if s.cfg.Prefix != "" {
		return fmt.Sprintf("%s/%s/%06d.jsonl", s.cfg.Prefix, s.sessionID, seq)
	}
	return fmt.Sprintf("%s/%06d.jsonl", s.sessionID, seq)
}

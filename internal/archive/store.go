// Package archive writes terminal staffing requests to S3. The
// registry keeps only live state; once a request completes or is
// cancelled its full snapshot lands here for audit and reporting.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yakushift/staffing-platform/internal/staffing"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ManifestEntry is one line of the monthly JSONL manifest.
type ManifestEntry struct {
	RequestID  string `json:"request_id"`
	S3Key      string `json:"s3_key"`
	StoreRef   string `json:"store_ref"`
	Date       string `json:"date"`
	Status     string `json:"status"`
	ArchivedAt string `json:"archived_at"`
}

// Store archives request snapshots. With no bucket or client
// configured every operation is a no-op, so callers wire it
// unconditionally.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
	now      func() time.Time
}

// NewStore creates an archive store.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger, now: time.Now}
}

// Enabled reports whether archival is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// ArchiveRequest writes the request as JSON under
// requests/v1/by-date/YYYY/MM/DD/<request_id>.json and appends it to
// the monthly manifest.
func (s *Store) ArchiveRequest(ctx context.Context, req *staffing.Request) error {
	if !s.Enabled() {
		return nil
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("archive: marshal request: %w", err)
	}

	now := s.now().UTC()
	s3Key := fmt.Sprintf("requests/v1/by-date/%d/%02d/%02d/%s.json",
		now.Year(), now.Month(), now.Day(), req.ID)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", s3Key, err)
	}

	s.logger.Info("archived request to S3",
		"request_id", req.ID, "s3_key", s3Key, "status", string(req.Status))

	entry := ManifestEntry{
		RequestID:  req.ID,
		S3Key:      s3Key,
		StoreRef:   req.StoreRef,
		Date:       req.Date,
		Status:     string(req.Status),
		ArchivedAt: now.Format(time.RFC3339),
	}
	if err := s.appendManifest(ctx, now, entry); err != nil {
		// The snapshot is already stored; a manifest miss is recoverable.
		s.logger.Warn("failed to append archive manifest", "error", err, "request_id", req.ID)
	}
	return nil
}

// appendManifest adds a JSONL line to the monthly manifest via
// read-modify-write; S3 has no append.
func (s *Store) appendManifest(ctx context.Context, now time.Time, entry ManifestEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	manifestKey := fmt.Sprintf("requests/v1/manifests/%d-%02d.jsonl", now.Year(), now.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	if err != nil {
		s.logger.Debug("archive manifest not readable, starting fresh",
			"key", manifestKey, "error", err)
	} else {
		existing, _ = io.ReadAll(getResp.Body)
		getResp.Body.Close()
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FallbackSink is the secondary durable channel the primary write falls
// back to (spec.md 4.7). A structured fallback entry — the full redacted
// event plus an error reason — is written here; the originating request
// is never failed for an audit error.
type FallbackSink interface {
	Write(ctx context.Context, e Entry, reason string) error
}

// S3FallbackSink writes each fallback entry as a single object, keyed by
// timestamp and tenant so an operator can page through misses
// chronologically without a database to query.
type S3FallbackSink struct {
	Client *s3.Client
	Bucket string
	Prefix string
}

type fallbackRecord struct {
	Entry  Entry  `json:"entry"`
	Reason string `json:"reason"`
}

func (s *S3FallbackSink) Write(ctx context.Context, e Entry, reason string) error {
	body, err := json.Marshal(fallbackRecord{Entry: e, Reason: reason})
	if err != nil {
		return fmt.Errorf("marshaling fallback record: %w", err)
	}

	key := fmt.Sprintf("%s%s/%s-%s.json", s.Prefix, e.TenantID, e.Timestamp.Format(time.RFC3339Nano), e.Action)

	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("writing fallback object: %w", err)
	}
	return nil
}

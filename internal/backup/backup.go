// Package backup uploads JSON snapshots of the record collection to S3.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"mahjong/internal/docstore"
)

// ObjectPutter is the part of *s3.Client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Snapshot is the uploaded document.
type Snapshot struct {
	Collection string                     `json:"collection"`
	TakenAt    time.Time                  `json:"taken_at"`
	Count      int                        `json:"count"`
	Documents  map[string]docstore.Fields `json:"documents"`
}

type Uploader struct {
	client     ObjectPutter
	bucket     string
	prefix     string
	coll       docstore.Collection
	collection string
	now        func() time.Time
}

func NewUploader(client ObjectPutter, bucket, prefix string, coll docstore.Collection, collection string) *Uploader {
	return &Uploader{
		client:     client,
		bucket:     bucket,
		prefix:     strings.Trim(prefix, "/"),
		coll:       coll,
		collection: collection,
		now:        time.Now,
	}
}

// NewS3Client loads the default AWS credential chain for region.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Key returns the object key for a snapshot taken at t.
func (u *Uploader) Key(t time.Time) string {
	t = t.UTC()
	name := fmt.Sprintf("records-%s.json", t.Format("20060102T150405Z"))
	return path.Join(u.prefix, t.Format("2006/01/02"), name)
}

// Run takes a snapshot and uploads it, returning the object key.
func (u *Uploader) Run(ctx context.Context) (string, error) {
	docs, err := docstore.ReadAll(ctx, u.coll)
	if err != nil {
		return "", fmt.Errorf("snapshot collection: %w", err)
	}

	taken := u.now()
	snap := Snapshot{
		Collection: u.collection,
		TakenAt:    taken.UTC(),
		Count:      len(docs),
		Documents:  make(map[string]docstore.Fields, len(docs)),
	}
	for _, d := range docs {
		snap.Documents[d.ID] = d.Fields
	}
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	key := u.Key(taken)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	slog.InfoContext(ctx, "Backup uploaded", "component", "backup", "bucket", u.bucket, "key", key, "count", len(docs))
	return key, nil
}

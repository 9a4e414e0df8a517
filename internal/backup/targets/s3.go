package targets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hellobirdie/hellobirdie/internal/backup"
	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/logger"
)

const defaultS3Region = "us-east-1"

// S3Target implements backup.Target on an S3-compatible bucket (AWS S3 or
// MinIO). Objects are laid out like LocalTarget under an optional prefix.
type S3Target struct {
	client *s3.Client
	bucket string
	prefix string
	log    logger.Logger
}

// NewS3Target builds a client from the default AWS credential chain.
// Endpoint and PathStyle allow S3-compatible servers.
func NewS3Target(ctx context.Context, settings *conf.S3BackupSettings) (*S3Target, error) {
	if settings.Bucket == "" {
		return nil, errors.Newf("s3 bucket required").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}

	region := settings.Region
	if region == "" {
		region = defaultS3Region
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to load AWS configuration: %w", err)).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = settings.PathStyle
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
			// Many S3-compatible servers reject the newer default checksums.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
	})

	return NewS3TargetWithClient(client, settings.Bucket, settings.Prefix), nil
}

// NewS3TargetWithClient wraps an existing client.
func NewS3TargetWithClient(client *s3.Client, bucket, prefix string) *S3Target {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Target{client: client, bucket: bucket, prefix: prefix, log: GetLogger()}
}

// Name returns the name of this target
func (t *S3Target) Name() string {
	return "s3"
}

// Store uploads the snapshot and then its metadata sidecar.
func (t *S3Target) Store(ctx context.Context, key string, r io.Reader, metadata *backup.Metadata) error {
	if err := validateKey(key); err != nil {
		return err
	}

	// PutObject needs a seekable body to sign and retry.
	body, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return s3Error(fmt.Errorf("failed to read backup: %w", err), key)
		}
		body = bytes.NewReader(data)
	}

	objectKey := t.prefix + key
	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(objectKey),
		Body:        body,
		ContentType: aws.String("application/gzip"),
		Metadata: map[string]string{
			"backup-id": metadata.ID,
			"checksum":  metadata.Checksum,
			"records":   strconv.Itoa(metadata.Records),
		},
	})
	if err != nil {
		return s3Error(fmt.Errorf("failed to upload backup: %w", err), objectKey)
	}

	sidecar, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return s3Error(fmt.Errorf("failed to encode metadata: %w", err), objectKey)
	}
	metaKey := t.prefix + metadata.ID + metadataSuffix
	_, err = t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(metaKey),
		Body:        bytes.NewReader(sidecar),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return s3Error(fmt.Errorf("failed to upload metadata: %w", err), metaKey)
	}

	t.log.Debug("stored backup in s3 target",
		logString("bucket", t.bucket),
		logString("key", objectKey))
	return nil
}

// List reads every sidecar under the prefix, newest first.
func (t *S3Target) List(ctx context.Context) ([]backup.Info, error) {
	var backups []backup.Info
	var token *string
	for {
		out, err := t.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(t.bucket),
			Prefix:            aws.String(t.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, s3Error(fmt.Errorf("failed to list backups: %w", err), t.prefix)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, metadataSuffix) {
				continue
			}
			meta, err := t.readMetadata(ctx, key)
			if err != nil {
				t.log.Warn("skipping backup with unreadable metadata",
					logString("key", key),
					logError(err))
				continue
			}
			backups = append(backups, backup.Info{Metadata: *meta, Target: t.Name()})
		}

		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].ID > backups[j].ID
	})
	return backups, nil
}

func (t *S3Target) readMetadata(ctx context.Context, key string) (*backup.Metadata, error) {
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Body.Close() }()

	var meta backup.Metadata
	if err := json.NewDecoder(out.Body).Decode(&meta); err != nil {
		return nil, err
	}
	if meta.ID == "" {
		return nil, fmt.Errorf("metadata in %s has no id", path.Base(key))
	}
	return &meta, nil
}

// Delete removes a backup and its sidecar.
func (t *S3Target) Delete(ctx context.Context, id string) error {
	if err := validateKey(id); err != nil {
		return err
	}
	for _, key := range []string{t.prefix + id + backup.FileExtension, t.prefix + id + metadataSuffix} {
		_, err := t.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(t.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return s3Error(fmt.Errorf("failed to delete backup: %w", err), key)
		}
	}
	return nil
}

// Validate checks the static configuration. Bucket access is checked by the
// first Store.
func (t *S3Target) Validate() error {
	if t.client == nil || t.bucket == "" {
		return errors.Newf("s3 target needs a client and a bucket").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func s3Error(err error, key string) error {
	return errors.New(err).
		Component("backup").
		Category(errors.CategoryNetwork).
		Context("target", "s3").
		Context("key", key).
		Build()
}

package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store implements Store over an S3-compatible backend (AWS S3 or MinIO).
// Single bucket; keys map to object keys directly.
type S3Store struct {
	client *s3.Client
	bucket string
}

// S3Config holds explicit construction parameters.
type S3Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional; enables a custom endpoint such as MinIO
	PathStyle bool
}

// NewS3 creates an S3 artifact store from cfg, using the default AWS
// credentials chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Driver returns the backend identifier.
func (s *S3Store) Driver() Driver { return DriverS3 }

// Put stores a new artifact; existence is emulated with a Head check since
// S3 has no native create-only put for this path.
func (s *S3Store) Put(ctx context.Context, key string, payload []byte, opts PutOptions) (Artifact, error) {
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key}); err == nil {
		return Artifact{}, ErrExists
	}
	input := &s3.PutObjectInput{Bucket: &s.bucket, Key: &key, Body: bytes.NewReader(payload)}
	if opts.ContentType != "" {
		input.ContentType = &opts.ContentType
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Key:         key,
		Size:        int64(len(payload)),
		ContentType: opts.ContentType,
		Metadata:    cloneMetadata(opts.Metadata),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Get returns the artifact and its payload.
func (s *S3Store) Get(ctx context.Context, key string) (Artifact, []byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		if isS3NotFound(err) {
			return Artifact{}, nil, ErrNotFound
		}
		return Artifact{}, nil, err
	}
	defer func() { _ = out.Body.Close() }()
	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return Artifact{}, nil, err
	}
	artifact := Artifact{Key: key, Size: int64(len(payload)), Metadata: out.Metadata}
	if out.ContentType != nil {
		artifact.ContentType = *out.ContentType
	}
	if out.LastModified != nil {
		artifact.CreatedAt = *out.LastModified
	}
	return artifact, payload, nil
}

// Delete removes the object. S3 deletes are idempotent, so a missing key
// still reports true.
func (s *S3Store) Delete(ctx context.Context, key string) (bool, error) {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		return false, err
	}
	return true, nil
}

// List returns artifacts under prefix, sorted by key, following continuation
// tokens across pages.
func (s *S3Store) List(ctx context.Context, prefix string) ([]Artifact, error) {
	var out []Artifact
	var token *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			artifact := Artifact{Key: aws.ToString(obj.Key), CreatedAt: aws.ToTime(obj.LastModified)}
			if obj.Size != nil {
				artifact.Size = *obj.Size
			}
			out = append(out, artifact)
		}
		if page.IsTruncated != nil && *page.IsTruncated && page.NextContinuationToken != nil {
			token = page.NextContinuationToken
			continue
		}
		break
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func isS3NotFound(err error) bool {
	// The SDK surfaces NoSuchKey through the error string for GetObject.
	return err != nil && strings.Contains(err.Error(), "NoSuchKey")
}

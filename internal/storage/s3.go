package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/lmarchetti/inkwell/internal/util"
)

type S3Config struct {
	AccessKeyID     string
	AccessKeySecret string
	BaseEndpoint    string
	Bucket          string
}

// S3 stores content in any S3-compatible bucket (R2, MinIO, AWS). Identifiers
// are object keys: the "filename" metadata key when present, the content
// digest otherwise.
type S3 struct { // implements Storage
	client *s3.Client
	bucket string
}

func NewS3(cfg S3Config) (*S3, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing s3 client: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func (s *S3) Store(ctx context.Context, content []byte, metadata map[string]string) (*Result, error) {
	hash := util.ContentHash(content)

	key := hash
	if name, ok := metadata[MetaFilename]; ok && name != "" {
		key = name
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentTypeOf(metadata)),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 put failed: %w", err)
	}

	return &Result{
		ID:  key,
		URL: fmt.Sprintf("s3://%s/%s", s.bucket, key),
		Metadata: Metadata{
			ID:          key,
			Hash:        hash,
			Size:        len(content),
			CreatedAt:   time.Now().UTC(),
			ContentType: contentTypeOf(metadata),
			Extra:       metadata,
		},
	}, nil
}

func (s *S3) Retrieve(ctx context.Context, id string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

func (s *S3) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head failed: %w", err)
	}
	return true, nil
}

func (s *S3) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}

func (s *S3) List(ctx context.Context, prefix string) ([]Metadata, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("s3 list failed: %w", err)
	}

	metadataList := make([]Metadata, 0, len(out.Contents))
	for _, obj := range out.Contents {
		meta := Metadata{
			ID:          aws.ToString(obj.Key),
			Size:        int(aws.ToInt64(obj.Size)),
			ContentType: DefaultContentType,
			Extra:       map[string]string{},
		}
		if obj.LastModified != nil {
			meta.CreatedAt = obj.LastModified.UTC()
		}
		metadataList = append(metadataList, meta)
	}

	return metadataList, nil
}

func (s *S3) Kind() Kind {
	return KindS3
}

package stage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"fraud-lake/internal/config"
	"fraud-lake/internal/domain"
)

var _ domain.Stage = (*S3)(nil)

// S3 is a stage in an S3-compatible bucket under a key prefix.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 creates an S3 stage with static credentials. Path-style addressing is
// used unless S3_URL_STYLE is "vhost".
func NewS3(cfg config.StageConfig) *S3 {
	client := s3.New(s3.Options{
		Region: cfg.S3Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.S3KeyID, cfg.S3Secret, "",
		),
		BaseEndpoint: aws.String(fmt.Sprintf("https://%s", cfg.S3Endpoint)),
		UsePathStyle: cfg.S3URLStyle != "vhost",
	})
	return &S3{client: client, bucket: cfg.S3Bucket, prefix: cfg.Location}
}

// Kind implements domain.Stage.
func (s *S3) Kind() string { return domain.StageKindS3 }

// URI implements domain.Stage.
func (s *S3) URI(name string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, objectKey(s.prefix, name))
}

// Put implements domain.Stage.
func (s *S3) Put(ctx context.Context, localPath string, overwrite bool) (*domain.StagedObject, error) {
	src, name, size, err := openSource(localPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	key := objectKey(s.prefix, name)
	if !overwrite {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return nil, domain.ErrConflict("staged object %q already exists", name)
		}
		var notFound *types.NotFound
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("head s3://%s/%s: %w", s.bucket, key, err)
		}
	}

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          src,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("text/csv"),
	}); err != nil {
		return nil, fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return &domain.StagedObject{Name: name, URI: s.URI(name), Size: size}, nil
}

// List implements domain.Stage.
func (s *S3) List(ctx context.Context) ([]domain.StagedObject, error) {
	prefix := keyPrefix(s.prefix)
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var out []domain.StagedObject
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			out = append(out, domain.StagedObject{
				Name:         name,
				URI:          s.URI(name),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}

// Close implements domain.Stage.
func (s *S3) Close() error { return nil }

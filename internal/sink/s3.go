package sink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	config "github.com/thirdweb-dev/extractor/configs"
	"github.com/thirdweb-dev/extractor/internal/metrics"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader copies written parquet files to an S3 bucket.
type Uploader struct {
	client objectPutter
	bucket string
	prefix string
}

// NewUploader builds an uploader from the output.s3 config. Static
// credentials are used when both keys are set, otherwise the default AWS
// chain applies.
func NewUploader(ctx context.Context, cfg config.S3Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not configured")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
			}, nil
		})))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newUploader(client, cfg.Bucket, cfg.Prefix), nil
}

func newUploader(client objectPutter, bucket, prefix string) *Uploader {
	return &Uploader{client: client, bucket: bucket, prefix: prefix}
}

// Key is the object key for a local file: <prefix>/chain_<id>/<dataset>/<file>.
func (u *Uploader) Key(file File) string {
	return path.Join(u.prefix, fmt.Sprintf("chain_%d", file.ChainID), file.Dataset, filepath.Base(file.Path))
}

// Upload streams the file to S3 with its checksum and block range as
// object metadata.
func (u *Uploader) Upload(ctx context.Context, file File) (string, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", file.Path, err)
	}
	defer f.Close()

	fileInfo, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to get file info: %w", err)
	}
	checksum, err := fileChecksum(f)
	if err != nil {
		return "", fmt.Errorf("failed to calculate file checksum: %w", err)
	}

	key := u.Key(file)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"chain_id":    fmt.Sprintf("%d", file.ChainID),
			"dataset":     file.Dataset,
			"first_label": file.First,
			"last_label":  file.Last,
			"rows":        fmt.Sprintf("%d", file.Rows),
			"checksum":    checksum,
			"file_size":   fmt.Sprintf("%d", fileInfo.Size()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	metrics.FilesUploaded.Inc()
	log.Debug().Str("bucket", u.bucket).Str("key", key).Int64("size", fileInfo.Size()).Msg("Uploaded parquet file")
	return key, nil
}

// fileChecksum hashes the whole file and leaves it positioned at the start.
func fileChecksum(f io.ReadSeeker) (string, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

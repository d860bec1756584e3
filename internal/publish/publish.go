// Package publish uploads run artifacts to S3-compatible object storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ErrInvalidURL is returned by ParseURL for anything but s3://bucket[/prefix].
var ErrInvalidURL = errors.New("invalid s3 url")

// Target is a bucket and key prefix.
type Target struct {
	Bucket string
	Prefix string
}

// ParseURL splits s3://bucket/prefix into a Target.
func ParseURL(raw string) (Target, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Target{}, fmt.Errorf("%w %q: %v", ErrInvalidURL, raw, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return Target{}, fmt.Errorf("%w %q: expected s3://bucket/prefix", ErrInvalidURL, raw)
	}
	return Target{Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
}

// URL renders the target back as s3://bucket/prefix.
func (t Target) URL() string {
	if t.Prefix == "" {
		return "s3://" + t.Bucket
	}
	return "s3://" + t.Bucket + "/" + t.Prefix
}

// Key is the object key for file under run.
func (t Target) Key(runID, file string) string {
	return path.Join(t.Prefix, runID, filepath.ToSlash(file))
}

// ObjectPutter is the part of the S3 client the publisher uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configure the S3 client.
type Options struct {
	Target          Target
	Region          string
	Endpoint        string // for MinIO and other S3-compatible stores
	AccessKeyID     string
	SecretAccessKey string
}

// Publisher uploads files under a run-specific prefix.
type Publisher struct {
	client ObjectPutter
	target Target
	logger *zap.Logger
}

// New builds a Publisher backed by the AWS SDK default credential chain,
// or static credentials when both keys are set.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Publisher, error) {
	var optFns []func(*config.LoadOptions) error
	if opts.Region != "" {
		optFns = append(optFns, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		})
	}
	return NewWithClient(s3.NewFromConfig(awsCfg, clientOpts...), opts.Target, logger), nil
}

// NewWithClient builds a Publisher around an existing client.
func NewWithClient(client ObjectPutter, target Target, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, target: target, logger: logger}
}

// Upload stores each file at <prefix>/<runID>/<path relative to baseDir>
// and returns the resulting s3:// URIs. It stops at the first failure.
func (p *Publisher) Upload(ctx context.Context, runID, baseDir string, files []string) ([]string, error) {
	uris := make([]string, 0, len(files))
	for _, file := range files {
		rel, err := filepath.Rel(baseDir, file)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(file)
		}
		key := p.target.Key(runID, rel)
		if err := p.put(ctx, file, key); err != nil {
			return uris, err
		}
		uri := fmt.Sprintf("s3://%s/%s", p.target.Bucket, key)
		p.logger.Info("published artifact", zap.String("file", file), zap.String("uri", uri))
		uris = append(uris, uri)
	}
	return uris, nil
}

func (p *Publisher) put(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.target.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(file)),
	})
	if err != nil {
		return fmt.Errorf("upload %s to s3://%s/%s: %w", filepath.Base(file), p.target.Bucket, key, err)
	}
	return nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".prom":
		return "text/plain; version=0.0.4"
	case ".tsv":
		return "text/tab-separated-values"
	}
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	return "application/octet-stream"
}

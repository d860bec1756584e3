package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type putCall struct {
	bucket, key, contentType, body string
}

type fakePutter struct {
	calls []putCall
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.calls = append(f.calls, putCall{
		bucket:      aws.ToString(in.Bucket),
		key:         aws.ToString(in.Key),
		contentType: aws.ToString(in.ContentType),
		body:        string(body),
	})
	return &s3.PutObjectOutput{}, nil
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{in: "s3://bucket", want: Target{Bucket: "bucket"}},
		{in: "s3://bucket/runs/genomes/", want: Target{Bucket: "bucket", Prefix: "runs/genomes"}},
		{in: "https://bucket/runs", wantErr: true},
		{in: "s3:///runs", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseURL(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTargetKeyAndURL(t *testing.T) {
	target := Target{Bucket: "b", Prefix: "runs"}
	assert.Equal(t, "runs/run-1/ecoli/report.md", target.Key("run-1", filepath.Join("ecoli", "report.md")))
	assert.Equal(t, "s3://b/runs", target.URL())
	assert.Equal(t, "run-1/report.md", Target{Bucket: "b"}.Key("run-1", "report.md"))
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "ecoli", "report.md")
	stats := filepath.Join(dir, "ecoli", "assembly_stats.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(report), 0o755))
	require.NoError(t, os.WriteFile(report, []byte("# Report\n"), 0o644))
	require.NoError(t, os.WriteFile(stats, []byte("sample,n50\necoli,1000\n"), 0o644))

	fake := &fakePutter{}
	p := NewWithClient(fake, Target{Bucket: "genomes", Prefix: "runs"}, nil)
	uris, err := p.Upload(context.Background(), "run-1", dir, []string{report, stats})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"s3://genomes/runs/run-1/ecoli/report.md",
		"s3://genomes/runs/run-1/ecoli/assembly_stats.csv",
	}, uris)
	require.Len(t, fake.calls, 2)
	assert.Equal(t, "genomes", fake.calls[0].bucket)
	assert.Equal(t, "text/markdown; charset=utf-8", fake.calls[0].contentType)
	assert.Equal(t, "# Report\n", fake.calls[0].body)
	assert.Equal(t, "sample,n50\necoli,1000\n", fake.calls[1].body)
}

func TestUploadOutsideBaseUsesFileName(t *testing.T) {
	file := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, os.WriteFile(file, []byte("x 1\n"), 0o644))

	fake := &fakePutter{}
	uris, err := NewWithClient(fake, Target{Bucket: "b"}, nil).Upload(context.Background(), "r", t.TempDir(), []string{file})
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://b/r/metrics.prom"}, uris)
	assert.Equal(t, "text/plain; version=0.0.4", fake.calls[0].contentType)
}

func TestUploadErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "report.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	failing := &fakePutter{err: errors.New("access denied")}
	uris, err := NewWithClient(failing, Target{Bucket: "b"}, nil).Upload(context.Background(), "r", dir, []string{file})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Empty(t, uris)

	_, err = NewWithClient(&fakePutter{}, Target{Bucket: "b"}, nil).Upload(context.Background(), "r", dir, []string{filepath.Join(dir, "missing.md")})
	require.Error(t, err)
}

func TestNewWithEndpoint(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "none"))
	p, err := New(context.Background(), Options{
		Target:          Target{Bucket: "b"},
		Region:          "us-east-1",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
	}, nil)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

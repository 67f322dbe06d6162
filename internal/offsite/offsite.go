// Package offsite ships backup snapshots to S3-compatible object storage.
package offsite

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/starford/glossa/internal/checksum"
)

// Target says where snapshots go.
type Target struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Secure    bool
}

// Putter is the part of *minio.Client the shipper uses.
type Putter interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Shipper uploads compressed snapshot files.
type Shipper struct {
	client Putter
	bucket string
	prefix string
	logger *slog.Logger
}

// New connects to the target.
func New(t Target, logger *slog.Logger) (*Shipper, error) {
	client, err := minio.New(t.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(t.AccessKey, t.SecretKey, ""),
		Secure: t.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("offsite: client: %w", err)
	}
	return NewWithClient(client, t.Bucket, t.Prefix, logger), nil
}

// NewWithClient creates a shipper around an existing client.
func NewWithClient(client Putter, bucket, prefix string, logger *slog.Logger) *Shipper {
	return &Shipper{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// Key returns the object key a snapshot file is stored under.
func (s *Shipper) Key(file string) string {
	return path.Join(s.prefix, filepath.Base(file)+".zst")
}

// Ship compresses the file and uploads it. The sha256 of the uncompressed
// file is stored as object metadata.
func (s *Shipper) Ship(ctx context.Context, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("offsite: read: %w", err)
	}
	packed := Compress(data)
	key := s.Key(file)

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(packed), int64(len(packed)), minio.PutObjectOptions{
		ContentType:  "application/zstd",
		UserMetadata: map[string]string{"sha256": checksum.Sum(data)},
	})
	if err != nil {
		return fmt.Errorf("offsite: put %s: %w", key, err)
	}
	s.logger.Info("offsite: shipped",
		slog.String("bucket", s.bucket),
		slog.String("key", key),
		slog.Int("bytes", len(data)),
		slog.Int("compressed", len(packed)))
	return nil
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// Compress zstd-compresses data.
func Compress(data []byte) []byte {
	return encoder.EncodeAll(data, nil)
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("offsite: decompress: %w", err)
	}
	return out, nil
}

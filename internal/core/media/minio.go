package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"memorial-site/internal/core/config"
)

// MinioStore S3 兼容对象存储，对象键 <分类目录>/<文件名>
type MinioStore struct {
	client *minio.Client
	bucket string
}

// normaliseEndpoint 支持 "minio:9000" 与 "http(s)://minio:9000"
func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}
	if !strings.Contains(raw, "://") {
		return raw, false, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, err
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid endpoint %q", raw)
	}
	if u.Path != "" && u.Path != "/" {
		return "", false, fmt.Errorf("endpoint must not contain a path")
	}
	return u.Host, u.Scheme == "https", nil
}

func NewMinioStore(c config.MinIO) (*MinioStore, error) {
	if c.AccessKey == "" || c.SecretKey == "" || c.Bucket == "" {
		return nil, fmt.Errorf("minio configuration incomplete")
	}
	endpoint, secure, err := normaliseEndpoint(c.Endpoint)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStore{client: client, bucket: c.Bucket}, nil
}

func key(k Kind, name string) string { return k.Dir() + "/" + name }

// EnsureLayout 对象存储没有目录，只保证 bucket 存在
func (s *MinioStore) EnsureLayout(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}

func (s *MinioStore) Save(ctx context.Context, k Kind, name string, r io.Reader, size int64, contentType string) (int64, error) {
	if size <= 0 {
		size = -1
	}
	info, err := s.client.PutObject(ctx, s.bucket, key(k, name), r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return 0, fmt.Errorf("put %s: %w", key(k, name), err)
	}
	return info.Size, nil
}

func (s *MinioStore) Open(ctx context.Context, k Kind, name string) (io.ReadSeekCloser, ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key(k, name), minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, err
	}
	return obj, ObjectInfo{Size: st.Size, ModTime: st.LastModified, ContentType: st.ContentType}, nil
}

func (s *MinioStore) Delete(ctx context.Context, k Kind, name string) error {
	return s.client.RemoveObject(ctx, s.bucket, key(k, name), minio.RemoveObjectOptions{})
}

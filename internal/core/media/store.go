package media

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("media object not found")

type ObjectInfo struct {
	Size        int64
	ModTime     time.Time
	ContentType string
}

// Store 物理存储；按 (分类, 文件名) 寻址
type Store interface {
	// EnsureLayout 幂等，启动时和每次写入前都可调用
	EnsureLayout(ctx context.Context) error
	Save(ctx context.Context, k Kind, name string, r io.Reader, size int64, contentType string) (int64, error)
	Open(ctx context.Context, k Kind, name string) (io.ReadSeekCloser, ObjectInfo, error)
	// Delete 对象不存在不算错误
	Delete(ctx context.Context, k Kind, name string) error
}

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// LocalStore 本地磁盘：<root>/<分类目录>/<文件名>
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore { return &LocalStore{root: root} }

func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) dir(k Kind) string { return filepath.Join(s.root, k.Dir()) }

func (s *LocalStore) EnsureLayout(_ context.Context) error {
	for _, k := range Kinds {
		if err := os.MkdirAll(s.dir(k), 0o755); err != nil {
			return fmt.Errorf("create media dir %s: %w", s.dir(k), err)
		}
	}
	return nil
}

// Save temp 文件 → fsync → rename；失败时不留半截文件
func (s *LocalStore) Save(_ context.Context, k Kind, name string, r io.Reader, _ int64, _ string) (int64, error) {
	dir := s.dir(k)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create media dir %s: %w", dir, err)
	}
	full := filepath.Join(dir, name)
	tmp := full + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(f, r)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return n, fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return n, fmt.Errorf("rename %s: %w", name, err)
	}
	return n, nil
}

func (s *LocalStore) Open(_ context.Context, k Kind, name string) (io.ReadSeekCloser, ObjectInfo, error) {
	f, err := os.Open(filepath.Join(s.dir(k), name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ObjectInfo{}, err
	}
	return f, ObjectInfo{
		Size:        st.Size(),
		ModTime:     st.ModTime(),
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
	}, nil
}

func (s *LocalStore) Delete(_ context.Context, k Kind, name string) error {
	err := os.Remove(filepath.Join(s.dir(k), name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s/%s: %w", k.Dir(), name, err)
	}
	return nil
}

package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"memorial-site/internal/domain"
)

func upload(name, ct string, body []byte) Upload {
	return Upload{
		Filename:    name,
		ContentType: ct,
		Size:        int64(len(body)),
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil },
	}
}

func newTestService(t *testing.T, max int64) (*Service, string, *observer.ObservedLogs) {
	t.Helper()
	root := t.TempDir()
	core, logs := observer.New(zapcore.DebugLevel)
	return NewService(NewLocalStore(root), max, zap.New(core)), root, logs
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestSave_StoresUnderClassifiedDir(t *testing.T) {
	s, root, _ := newTestService(t, 0)
	ctx := context.Background()

	ref, err := s.Save(ctx, upload("song.mp3", "audio/mpeg", []byte("ID3 data")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "/uploads/audios/"), ref)
	assert.True(t, strings.HasSuffix(ref, ".mp3"), ref)

	_, err = os.Stat(filepath.Join(root, "audios", filepath.Base(ref)))
	assert.NoError(t, err)
}

func TestSave_SniffsMissingContentType(t *testing.T) {
	s, _, _ := newTestService(t, 0)
	ref, err := s.Save(context.Background(), upload("dot.png", "", pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "/uploads/photos/"), ref)

	rc, info, err := s.Open(context.Background(), "photos", filepath.Base(ref))
	require.NoError(t, err)
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	assert.Equal(t, pngHeader, b)
	assert.EqualValues(t, len(pngHeader), info.Size)
}

func TestSave_RejectsDisallowedType(t *testing.T) {
	s, root, _ := newTestService(t, 0)
	_, err := s.Save(context.Background(), upload("run.exe", "application/x-msdownload", []byte("MZ")))
	require.Error(t, err)
	assert.Equal(t, domain.KindUploadRejected, domain.KindOf(err))

	entries, _ := os.ReadDir(filepath.Join(root, "photos"))
	assert.Empty(t, entries)
}

func TestSave_RejectsWrongKindForSlot(t *testing.T) {
	s, _, _ := newTestService(t, 0)
	_, err := s.Save(context.Background(), upload("a.mp4", "video/mp4", []byte("x")), KindAudio)
	require.Error(t, err)
	assert.Equal(t, domain.KindUploadRejected, domain.KindOf(err))
}

func TestSave_TooLarge(t *testing.T) {
	s, root, _ := newTestService(t, 8)

	_, err := s.Save(context.Background(), upload("a.txt", "text/plain", []byte("123456789")))
	require.Error(t, err)
	assert.Equal(t, domain.KindTooLarge, domain.KindOf(err))

	// 声明大小不可信时按实际写入量判断
	up := upload("b.txt", "text/plain", []byte("0123456789abcdef"))
	up.Size = 0
	_, err = s.Save(context.Background(), up)
	require.Error(t, err)
	assert.Equal(t, domain.KindTooLarge, domain.KindOf(err))

	entries, _ := os.ReadDir(filepath.Join(root, "photos"))
	assert.Empty(t, entries)
}

func TestSave_OpenError(t *testing.T) {
	s, _, _ := newTestService(t, 0)
	boom := errors.New("closed")
	_, err := s.Save(context.Background(), Upload{Filename: "a.jpg", ContentType: "image/jpeg", Open: func() (io.ReadCloser, error) { return nil, boom }})
	assert.ErrorIs(t, err, boom)
}

func TestReclaim_ReplacementLeavesOneFile(t *testing.T) {
	s, root, logs := newTestService(t, 0)
	ctx := context.Background()

	old, err := s.Save(ctx, upload("old.jpg", "image/jpeg", []byte("old")))
	require.NoError(t, err)
	fresh, err := s.Save(ctx, upload("new.jpg", "image/jpeg", []byte("new")))
	require.NoError(t, err)

	s.Reclaim(ctx, old, "", "https://elsewhere.example/x.jpg")

	entries, err := os.ReadDir(filepath.Join(root, "photos"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(fresh), entries[0].Name())
	assert.Equal(t, 1, logs.FilterMessage("stale media reclaimed").Len())
}

type failingStore struct{ Store }

func (failingStore) Delete(context.Context, Kind, string) error { return errors.New("disk gone") }

func TestReclaim_FailureOnlyWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewService(failingStore{NewLocalStore(t.TempDir())}, 0, zap.New(core))

	s.Reclaim(context.Background(), "/uploads/photos/1-1.jpg")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "reclaim stale media failed", logs.All()[0].Message)
}

func TestOpen_UnknownLocation(t *testing.T) {
	s, _, _ := newTestService(t, 0)
	_, _, err := s.Open(context.Background(), "secrets", "a.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	_, _, err = s.Open(context.Background(), "photos", "..")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	_, _, err = s.Open(context.Background(), "photos", "missing.jpg")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

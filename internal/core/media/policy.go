// Package media stores uploaded memorial files in a category-partitioned tree
// and hands back the public reference path recorded on the memorial.
package media

import (
	"fmt"
	"math/rand/v2"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"memorial-site/internal/domain"
)

type Kind string

const (
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
	KindAvatar   Kind = "avatar"
)

// Kinds 顺序即目录创建顺序
var Kinds = []Kind{KindPhoto, KindVideo, KindAudio, KindDocument, KindAvatar}

func (k Kind) Dir() string { return string(k) + "s" }

func KindFromDir(dir string) (Kind, bool) {
	for _, k := range Kinds {
		if k.Dir() == dir {
			return k, true
		}
	}
	return "", false
}

// RefPrefix 公共访问前缀，与磁盘布局一一对应
const RefPrefix = "/uploads/"

const DefaultMaxBytes int64 = 500 << 20

var allowedExt = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {},
	".mp4": {}, ".mov": {}, ".avi": {},
	".mp3": {}, ".wav": {}, ".m4a": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".txt": {},
}

var allowedTypes = map[string]struct{}{
	"image/jpeg": {}, "image/jpg": {}, "image/pjpeg": {}, "image/png": {}, "image/gif": {},
	"video/mp4": {}, "video/quicktime": {}, "video/x-msvideo": {}, "video/avi": {}, "video/msvideo": {},
	"audio/mpeg": {}, "audio/mp3": {}, "audio/wav": {}, "audio/x-wav": {}, "audio/wave": {},
	"audio/mp4": {}, "audio/m4a": {}, "audio/x-m4a": {},
	"application/pdf": {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"text/plain": {},
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// Classify 按声明的类型分桶：video/ audio/ 前缀，pdf / word 子串归文档，其余一律照片
func Classify(contentType string) Kind {
	mt := mediaType(contentType)
	switch {
	case strings.HasPrefix(mt, "video/"):
		return KindVideo
	case strings.HasPrefix(mt, "audio/"):
		return KindAudio
	case strings.Contains(mt, "pdf"), strings.Contains(mt, "word"):
		return KindDocument
	}
	return KindPhoto
}

// Accept 扩展名和声明类型都必须在白名单里
func Accept(filename, contentType string) error {
	if _, ok := allowedExt[strings.ToLower(filepath.Ext(filename))]; !ok {
		return domain.UploadRejected("disallowed file type")
	}
	if _, ok := allowedTypes[mediaType(contentType)]; !ok {
		return domain.UploadRejected("disallowed file type")
	}
	return nil
}

// NewName <毫秒时间戳>-<随机数><原扩展名>，按字典序大致即上传顺序
func NewName(original string, now time.Time) string {
	return fmt.Sprintf("%d-%09d%s", now.UnixMilli(), rand.IntN(1e9), filepath.Ext(original))
}

func Ref(k Kind, name string) string { return RefPrefix + k.Dir() + "/" + name }

// ParseRef 拒绝目录穿越和未知分类
func ParseRef(ref string) (Kind, string, error) {
	rest, ok := strings.CutPrefix(ref, RefPrefix)
	if !ok {
		return "", "", fmt.Errorf("not a media ref: %q", ref)
	}
	dir, name, ok := strings.Cut(rest, "/")
	if !ok {
		return "", "", fmt.Errorf("not a media ref: %q", ref)
	}
	return ParseLocation(dir, name)
}

func ParseLocation(dir, name string) (Kind, string, error) {
	k, ok := KindFromDir(dir)
	if !ok {
		return "", "", fmt.Errorf("unknown media category %q", dir)
	}
	if name == "" || name == "." || name == ".." || path.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return "", "", fmt.Errorf("bad media name %q", name)
	}
	return k, name, nil
}

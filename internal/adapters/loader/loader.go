// Package loader provides document loading adapters.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxSize caps how much of a file is read into memory.
const DefaultMaxSize = 50 << 20

var (
	// ErrUnsupportedType is returned for files outside the accepted extensions.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrTooLarge is returned for files above the loader's size cap.
	ErrTooLarge = errors.New("file too large")
)

// DefaultExtensions are the document formats the backend indexes.
func DefaultExtensions() []string {
	return []string{".pdf", ".docx", ".txt"}
}

// FileLoader reads local files into upload selections. The extension check
// is advisory; the backend validates content.
type FileLoader struct {
	extensions map[string]struct{}
	maxSize    int64
}

// NewFileLoader creates a loader accepting extensions. An empty list selects
// DefaultExtensions and a non-positive maxSize selects DefaultMaxSize.
func NewFileLoader(extensions []string, maxSize int64) *FileLoader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions()
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	l := &FileLoader{
		extensions: make(map[string]struct{}, len(extensions)),
		maxSize:    maxSize,
	}
	for _, ext := range extensions {
		l.extensions[normalizeExt(ext)] = struct{}{}
	}
	return l
}

// Load reads the file at path.
func (l *FileLoader) Load(ctx context.Context, path string) (*entities.PendingUpload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.Accepts(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > l.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return &entities.PendingUpload{
		Path:        path,
		Filename:    filepath.Base(path),
		ContentType: contentType(path, data),
		Size:        len(data),
		Data:        data,
	}, nil
}

// Accepts reports whether path has an accepted extension.
func (l *FileLoader) Accepts(path string) bool {
	_, ok := l.extensions[normalizeExt(filepath.Ext(path))]
	return ok
}

// SupportedExtensions returns the accepted extensions, sorted.
func (l *FileLoader) SupportedExtensions() []string {
	exts := make([]string, 0, len(l.extensions))
	for ext := range l.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// contentType sniffs the payload; plain text falls back on the extension
// since short files rarely carry a signature.
func contentType(path string, data []byte) string {
	mt := mimetype.Detect(data)
	if mt.Is("application/octet-stream") {
		if byExt := mimetype.Lookup(extMIME(path)); byExt != nil {
			return byExt.String()
		}
	}
	return mt.String()
}

func extMIME(path string) string {
	switch normalizeExt(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	}
	return ""
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

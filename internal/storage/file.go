package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes objects below a local directory. Intended for development runs.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("file sink directory is not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sink directory: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Put writes through a temp file and rename so readers never see a partial object.
func (s *FileSink) Put(ctx context.Context, key string, body []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (s *FileSink) Location(key string) string {
	return "file://" + s.path(key)
}

func (s *FileSink) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(filepath.Clean("/"+key)))
}

package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalSink writes export archives below a directory on disk.
type LocalSink struct {
	Dir string
}

func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{Dir: dir}
}

// Put writes body to Dir/key and returns the file path.
func (l *LocalSink) Put(_ context.Context, key string, body []byte) (string, error) {
	dest, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return "", err
	}

	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return dest, nil
}

// path resolves key inside Dir, refusing keys that escape it.
func (l *LocalSink) path(key string) (string, error) {
	root := filepath.Clean(l.Dir)
	dest := filepath.Join(root, filepath.FromSlash(key))
	if dest != root && !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid export key %q", key)
	}
	return dest, nil
}

package objstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

// LocalStore keeps objects under a directory served at baseURL.
type LocalStore struct {
	dir     string
	baseURL string
}

var _ core.ObjectStore = (*LocalStore)(nil)

func NewLocalStore(dir, baseURL string) *LocalStore {
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *LocalStore) path(key string) (string, error) {
	p := filepath.Join(s.dir, filepath.FromSlash(key))
	if !strings.HasPrefix(p, filepath.Clean(s.dir)+string(os.PathSeparator)) {
		return "", errors.Errorf("invalid object key %q", key)
	}
	return p, nil
}

func (s *LocalStore) Put(ctx context.Context, key, _ string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", errors.Wrap(err, "creating object dir")
	}
	f, err := os.Create(p)
	if err != nil {
		return "", errors.Wrap(err, "creating object")
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", errors.Wrap(err, "writing object")
	}
	if err = f.Close(); err != nil {
		return "", errors.Wrap(err, "closing object")
	}
	return s.baseURL + "/" + key, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err = os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting object")
	}
	return nil
}

func (s *LocalStore) Dir() string     { return s.dir }
func (s *LocalStore) BaseURL() string { return s.baseURL }

// New returns the store selected by conf.Driver.
func New(conf core.StorageConfig) (core.ObjectStore, error) {
	switch conf.Driver {
	case "oss":
		return NewOSSStore(conf)
	case "", "local":
		dir := conf.LocalDir
		if dir == "" {
			dir = filepath.Join(os.TempDir(), "shule-media")
		}
		return NewLocalStore(dir, conf.PublicBaseURL), nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", conf.Driver)
	}
}

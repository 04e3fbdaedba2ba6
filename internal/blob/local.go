package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/varunv-ux/getglow/internal/config"
)

// LocalStore keeps objects on local disk under a base directory. URLs are
// the public base path plus the stored file name.
type LocalStore struct {
	baseDir       string
	publicBaseURL string
}

func NewLocalStore(cfg config.LocalBlobConfig) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob base dir: %w", err)
	}
	return &LocalStore{
		baseDir:       cfg.BaseDir,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}, nil
}

func (s *LocalStore) Put(_ context.Context, data []byte, suggestedName, _ string) (string, error) {
	name := objectName(suggestedName)
	path := filepath.Join(s.baseDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return s.publicBaseURL + "/" + name, nil
}

func (s *LocalStore) Get(_ context.Context, url string) ([]byte, error) {
	name := filepath.Base(url)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid blob url %q", url)
	}
	data, err := os.ReadFile(filepath.Join(s.baseDir, name))
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *LocalStore) Delete(_ context.Context, url string) error {
	name := filepath.Base(url)
	// Refuse anything that is not a bare stored name.
	if name == "" || name == "." || name == string(filepath.Separator) {
		return fmt.Errorf("invalid blob url %q", url)
	}
	if err := os.Remove(filepath.Join(s.baseDir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// objectName prefixes a fresh UUID so concurrent uploads with the same file
// name never collide.
func objectName(suggestedName string) string {
	ext := filepath.Ext(suggestedName)
	if ext == "" {
		ext = ".jpg"
	}
	return uuid.NewString() + ext
}

var _ Store = (*LocalStore)(nil)

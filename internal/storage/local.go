package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lmarchetti/inkwell/internal/util"
)

type LocalConfig struct {
	BaseDir string
}

// Local stores content as plain files under a base directory. The identifier
// is the caller-supplied "filename" metadata key, falling back to the content
// digest, which makes the backend content-addressed by default.
type Local struct { // implements Storage
	baseDir string
}

func NewLocal(cfg LocalConfig) (*Local, error) {
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating storage directory: %w", err)
	}
	return &Local{baseDir: cfg.BaseDir}, nil
}

func (l *Local) path(id string) string {
	return filepath.Join(l.baseDir, id)
}

func (l *Local) Store(ctx context.Context, content []byte, metadata map[string]string) (*Result, error) {
	hash := util.ContentHash(content)

	id := hash
	if name, ok := metadata[MetaFilename]; ok && name != "" {
		id = name
	}

	filePath := l.path(id)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("error creating parent directory: %w", err)
	}
	if err := os.WriteFile(filePath, content, 0o644); err != nil {
		return nil, fmt.Errorf("error writing content: %w", err)
	}

	return &Result{
		ID:  id,
		URL: "file://" + filePath,
		Metadata: Metadata{
			ID:          id,
			Hash:        hash,
			Size:        len(content),
			CreatedAt:   time.Now().UTC(),
			ContentType: contentTypeOf(metadata),
			Extra:       metadata,
		},
	}, nil
}

func (l *Local) Retrieve(ctx context.Context, id string) ([]byte, error) {
	content, err := os.ReadFile(l.path(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading content: %w", err)
	}
	return content, nil
}

func (l *Local) Exists(ctx context.Context, id string) (bool, error) {
	_, err := os.Stat(l.path(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *Local) Delete(ctx context.Context, id string) error {
	err := os.Remove(l.path(id))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

func (l *Local) List(ctx context.Context, prefix string) ([]Metadata, error) {
	searchPath := l.baseDir
	if prefix != "" {
		searchPath = filepath.Join(l.baseDir, prefix)
	}

	entries, err := os.ReadDir(searchPath)
	if os.IsNotExist(err) {
		return []Metadata{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error listing storage directory: %w", err)
	}

	metadataList := make([]Metadata, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, err
		}

		metadataList = append(metadataList, Metadata{
			ID:          entry.Name(),
			Size:        int(info.Size()),
			CreatedAt:   info.ModTime().UTC(),
			ContentType: DefaultContentType,
			Extra:       map[string]string{},
		})
	}

	return metadataList, nil
}

func (l *Local) Kind() Kind {
	return KindLocal
}

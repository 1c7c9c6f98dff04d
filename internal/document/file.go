package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchbot/models"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FileRepository stores one JSON file per session in a folder.
type FileRepository struct {
	Folder string
}

func NewFileRepository(folder string) (*FileRepository, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("create documents folder: %w", err)
	}
	return &FileRepository{Folder: folder}, nil
}

func (r *FileRepository) path(sessionID string) (string, error) {
	if !sessionIDPattern.MatchString(sessionID) {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(r.Folder, sessionID+".json"), nil
}

func (r *FileRepository) Get(ctx context.Context, sessionID string) (models.Document, error) {
	p, err := r.path(sessionID)
	if err != nil {
		return models.Document{}, err
	}
	return readDocument(p)
}

func (r *FileRepository) Put(ctx context.Context, doc models.Document) error {
	p, err := r.path(doc.SessionID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (r *FileRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(r.Folder)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, ent := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}
		p := filepath.Join(r.Folder, ent.Name())
		doc, err := readDocument(p)
		if err != nil || !doc.UpdatedAt().Before(cutoff) {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func readDocument(p string) (models.Document, error) {
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return models.Document{}, ErrNoDocument
	}
	if err != nil {
		return models.Document{}, err
	}
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.Document{}, fmt.Errorf("decode %s: %w", filepath.Base(p), err)
	}
	return doc, nil
}

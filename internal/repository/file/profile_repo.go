// Package file хранит профили как JSON-документы, по одному файлу <user_id>.json на аккаунт.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xela07ax/fraudprofile/internal/domain"
)

const ext = ".json"

type ProfileRepo struct {
	dir    string
	logger *zap.Logger
}

// NewProfileRepo создаёт каталог, если его нет.
func NewProfileRepo(dir string, logger *zap.Logger) (*ProfileRepo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: create %s: %w", dir, err)
	}
	return &ProfileRepo{
		dir:    dir,
		logger: logger.With(zap.String("mod", "file_store"), zap.String("dir", dir)),
	}, nil
}

// Get возвращает domain.ErrNotFound, если профиль ни разу не сохранялся.
func (r *ProfileRepo) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	path, err := r.path(userID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "load", UserID: userID, Err: err}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: profile %s", domain.ErrNotFound, userID)
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", UserID: userID, Err: err}
	}

	p, err := decode(data)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", UserID: userID, Err: err}
	}
	return p, nil
}

// Save пишет документ атомарно: временный файл в том же каталоге + rename.
func (r *ProfileRepo) Save(ctx context.Context, p *domain.Profile) error {
	path, err := r.path(p.UserID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &domain.PersistenceError{Op: "save", UserID: p.UserID, Err: err}
	}

	data, err := json.Marshal(p)
	if err != nil {
		return &domain.PersistenceError{Op: "save", UserID: p.UserID, Err: err}
	}

	tmp, err := os.CreateTemp(r.dir, "."+p.UserID+"-*.tmp")
	if err != nil {
		return &domain.PersistenceError{Op: "save", UserID: p.UserID, Err: err}
	}
	defer os.Remove(tmp.Name()) // после rename — no-op

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &domain.PersistenceError{Op: "save", UserID: p.UserID, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &domain.PersistenceError{Op: "save", UserID: p.UserID, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &domain.PersistenceError{Op: "save", UserID: p.UserID, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &domain.PersistenceError{Op: "save", UserID: p.UserID, Err: err}
	}
	return nil
}

// List читает все снимки каталога в порядке user_id. Повреждённые файлы пропускаются с предупреждением.
func (r *ProfileRepo) List(ctx context.Context) ([]*domain.Profile, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list", Err: err}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]*domain.Profile, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, &domain.PersistenceError{Op: "list", Err: err}
		}
		data, err := os.ReadFile(filepath.Join(r.dir, name))
		if err != nil {
			return nil, &domain.PersistenceError{Op: "list", UserID: strings.TrimSuffix(name, ext), Err: err}
		}
		p, err := decode(data)
		if err != nil {
			r.logger.Warn("skipping unreadable profile snapshot", zap.String("file", name), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *ProfileRepo) path(userID string) (string, error) {
	if userID == "" || userID != filepath.Base(userID) || strings.HasPrefix(userID, ".") {
		return "", &domain.ValidationError{Field: "user_id", Value: userID, Reason: "not usable as a file name"}
	}
	return filepath.Join(r.dir, userID+ext), nil
}

func decode(data []byte) (*domain.Profile, error) {
	var p domain.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if p.UserID == "" {
		return nil, errors.New("decode profile: missing user_id")
	}
	if p.History == nil {
		p.History = []domain.HistoryEntry{}
	}
	return &p, nil
}

package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/destroydevs/TikFetchBot/internal/model"
)

// FileStore keeps every user in one JSON document. Each operation reads the
// whole arena, mutates it and rewrites it under a single mutex, so all users
// share one critical section. That is acceptable only because request volume
// is low.
type FileStore struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

func NewFileStore(path string, opts ...Option) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("users file path is empty")
	}
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &FileStore{path: path, now: o.now}, nil
}

func (s *FileStore) Exists(_ context.Context, id int64) (bool, error) {
	var found bool
	err := s.view(func(users map[int64]model.User) error {
		_, found = users[id]
		return nil
	})
	return found, err
}

func (s *FileStore) Create(_ context.Context, user model.User) error {
	return s.update(func(users map[int64]model.User) error {
		if _, ok := users[user.ID]; ok {
			return ErrAlreadyExists
		}
		users[user.ID] = user
		return nil
	})
}

func (s *FileStore) Fetch(_ context.Context, id int64) (*model.User, error) {
	var user model.User
	err := s.view(func(users map[int64]model.User) error {
		u, ok := users[id]
		if !ok {
			return ErrNotFound
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *FileStore) SetField(_ context.Context, id int64, field model.Field, raw string) error {
	value, err := checkField(field, raw)
	if err != nil {
		return err
	}
	return s.update(func(users map[int64]model.User) error {
		u, ok := users[id]
		if !ok {
			return ErrNotFound
		}
		u.Apply(field, value)
		users[id] = u
		return nil
	})
}

func (s *FileStore) IncrementRequestCount(_ context.Context, id int64) error {
	return s.update(func(users map[int64]model.User) error {
		u, ok := users[id]
		if !ok {
			return ErrNotFound
		}
		u.RequestCount++
		u.LastSeenAt = model.Millis(s.now())
		users[id] = u
		return nil
	})
}

func (s *FileStore) Stats(_ context.Context) (model.Stats, error) {
	var stats model.Stats
	err := s.view(func(users map[int64]model.User) error {
		stats.Users = int64(len(users))
		for _, u := range users {
			stats.Requests += u.RequestCount
		}
		return nil
	})
	return stats, err
}

func (s *FileStore) Delete(_ context.Context, id int64) error {
	return s.update(func(users map[int64]model.User) error {
		if _, ok := users[id]; !ok {
			return ErrNotFound
		}
		delete(users, id)
		return nil
	})
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) view(fn func(users map[int64]model.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	return fn(users)
}

func (s *FileStore) update(fn func(users map[int64]model.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(users); err != nil {
		return err
	}
	return s.save(users)
}

func (s *FileStore) load() (map[int64]model.User, error) {
	users := make(map[int64]model.User)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return users, nil
	}
	if err != nil {
		return nil, storageErr("read users file", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return users, nil
	}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, storageErr("decode users file", err)
	}
	return users, nil
}

// save writes to a sibling temp file first so a crash never leaves a torn document.
func (s *FileStore) save(users map[int64]model.User) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return storageErr("encode users file", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return storageErr("write users file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return storageErr("replace users file", err)
	}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %q: %w", dir, err)
	}
	return nil
}

package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	tdsession "github.com/gotd/td/session"

	"github.com/lawgate/consult-server-go/internal/util"
)

// FileStorage keeps the operator session blob in a single file. Writes go
// to a temp file in the same directory, are fsynced and then renamed over
// the previous blob, so a crash leaves either the old or the new blob.
//
// FileStorage satisfies the MTProto client's session storage interface.
type FileStorage struct {
	path string
	key  string
	mu   sync.Mutex
}

// NewFileStorage returns storage at path. When encryptionKey is set the blob
// is sealed with AES-256-GCM.
func NewFileStorage(path, encryptionKey string) *FileStorage {
	return &FileStorage{path: path, key: encryptionKey}
}

// LoadSession returns the stored blob or tdsession.ErrNotFound.
func (s *FileStorage) LoadSession(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, tdsession.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if len(data) == 0 {
		return nil, tdsession.ErrNotFound
	}

	if s.key == "" {
		return data, nil
	}
	plain, err := util.Open(s.key, data)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return plain, nil
}

func (s *FileStorage) StoreSession(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != "" {
		sealed, err := util.Seal(s.key, data)
		if err != nil {
			return fmt.Errorf("seal session: %w", err)
		}
		data = sealed
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp session: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp session: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	committed = true

	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}

var _ tdsession.Storage = (*FileStorage)(nil)

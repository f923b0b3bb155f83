package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/richxcame/driver-agent/pkg/models"
)

const (
	sessionFile = "session.json"
	flagsFile   = "flags.json"
)

// FileStore persists records as JSON files under a directory, one file
// per record. Writes go to a temp file first and are renamed into place,
// so a crash mid-write leaves the previous record intact.
type FileStore struct {
	dir string
}

// NewFileStore creates the store directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// SaveSession persists the full session record
func (s *FileStore) SaveSession(_ context.Context, session *models.RideSession) error {
	return s.writeAtomic(sessionFile, session)
}

// LoadSession returns the persisted session, or nil when none exists
func (s *FileStore) LoadSession(_ context.Context) (*models.RideSession, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, sessionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session record: %w", err)
	}

	var session models.RideSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &session, nil
}

// SaveFlags persists the trip progress flags
func (s *FileStore) SaveFlags(_ context.Context, flags models.Flags) error {
	return s.writeAtomic(flagsFile, flags)
}

// LoadFlags returns the persisted flags, zero-valued when none exist
func (s *FileStore) LoadFlags(_ context.Context) (models.Flags, error) {
	var flags models.Flags

	data, err := os.ReadFile(filepath.Join(s.dir, flagsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return flags, nil
		}
		return flags, fmt.Errorf("read flags record: %w", err)
	}

	if err := json.Unmarshal(data, &flags); err != nil {
		return flags, fmt.Errorf("decode flags record: %w", err)
	}
	return flags, nil
}

// Clear removes both records
func (s *FileStore) Clear(_ context.Context) error {
	for _, name := range []string{sessionFile, flagsFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

func (s *FileStore) writeAtomic(name string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

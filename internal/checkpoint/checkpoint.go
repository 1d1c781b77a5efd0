// Package checkpoint stores season search progress on disk as MessagePack
// so an interrupted run can pick up where it stopped.
package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/ecocrop/internal/season"
)

var _ season.Checkpointer = (*FileStore)(nil)

var unsafeKey = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileStore keeps one file per key in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if it does not exist.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file that holds key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, unsafeKey.ReplaceAllString(key, "_")+".ckpt")
}

// Load reads the state stored under key. A missing file is not an error.
func (s *FileStore) Load(key string) (*season.State, error) {
	f, err := os.Open(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var st season.State
	if err := msgpack.NewDecoder(f).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Name(), err)
	}
	return &st, nil
}

// Save replaces the state stored under key. The new state is written to a
// temporary file first so a crash never leaves a truncated checkpoint.
func (s *FileStore) Save(key string, st *season.State) error {
	path := s.Path(key)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := msgpack.NewEncoder(tmp).Encode(st); err != nil {
		tmp.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Remove deletes the state stored under key, if any.
func (s *FileStore) Remove(key string) error {
	err := os.Remove(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

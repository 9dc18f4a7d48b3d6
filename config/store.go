package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	logger "github.com/sirupsen/logrus"
)

// Store loads and saves the station configuration.
type Store interface {
	Load() (Configuration, error)
	Save(Configuration) error
}

// FileStore keeps the configuration image in a single file, the way the
// microcontroller builds keep it in EEPROM.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load returns a blank configuration when the file is missing or carries a
// different version tag.
func (s *FileStore) Load() (Configuration, error) {
	img, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warnf("No configuration at [%v], starting blank", s.Path)
		return Configuration{}, nil
	}
	if err != nil {
		return Configuration{}, fmt.Errorf("read configuration: %w", err)
	}
	c, valid, err := Decode(img)
	if err != nil {
		logger.Warnf("Configuration at [%v] unreadable, starting blank [%v]", s.Path, err)
		return Configuration{}, nil
	}
	if !valid {
		logger.Warnf("Configuration at [%v] has an old version tag, starting blank", s.Path)
	}
	return c, nil
}

// Save writes the whole image through a temp file so a power cut never
// leaves half an image behind.
func (s *FileStore) Save(c Configuration) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*")
	if err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(c.Encode()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save configuration: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save configuration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}
	return nil
}

// MemoryStore holds the image in memory. Used in test mode and tests.
type MemoryStore struct {
	lock  sync.Mutex
	image []byte
	Saves int
}

func (m *MemoryStore) Load() (Configuration, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.image == nil {
		return Configuration{}, nil
	}
	c, _, err := Decode(m.image)
	return c, err
}

func (m *MemoryStore) Save(c Configuration) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.image = c.Encode()
	m.Saves++
	return nil
}

// SetImage replaces the stored image as is.
func (m *MemoryStore) SetImage(img []byte) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.image = append([]byte(nil), img...)
}

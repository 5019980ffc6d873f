package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/satconnect/go-sdk/types"
)

const configFilename = "state.json"

type configStore struct {
	lock    *sync.RWMutex
	datadir string
}

func NewConfigStore(baseDir string) (types.ConfigStore, error) {
	if len(baseDir) == 0 {
		return nil, fmt.Errorf("missing base directory")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create datadir %s: %s", baseDir, err)
	}

	store := &configStore{
		lock:    &sync.RWMutex{},
		datadir: baseDir,
	}

	// Create an empty state file if missing.
	if _, err := os.Stat(store.filepath()); os.IsNotExist(err) {
		if err := store.write(storeData{}); err != nil {
			return nil, err
		}
	}

	return store, nil
}

func (s *configStore) GetType() string {
	return types.FileStore
}

func (s *configStore) GetDatadir() string {
	return s.datadir
}

func (s *configStore) AddData(_ context.Context, data types.Config) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.write(encode(data))
}

func (s *configStore) GetData(_ context.Context) (*types.Config, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	data, err := s.read()
	if err != nil {
		return nil, err
	}
	if data.isEmpty() {
		return nil, nil
	}

	cfg := data.decode()
	return &cfg, nil
}

func (s *configStore) CleanData(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.write(storeData{})
}

func (s *configStore) Close() {}

func (s *configStore) filepath() string {
	return filepath.Join(s.datadir, configFilename)
}

func (s *configStore) read() (storeData, error) {
	buf, err := os.ReadFile(s.filepath())
	if err != nil {
		return storeData{}, fmt.Errorf("failed to read config file: %s", err)
	}

	var data storeData
	if err := json.Unmarshal(buf, &data); err != nil {
		return storeData{}, fmt.Errorf("failed to parse config file: %s", err)
	}
	return data, nil
}

func (s *configStore) write(data storeData) error {
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.filepath() + ".tmp"
	if err := os.WriteFile(tmp, buf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %s", err)
	}
	return os.Rename(tmp, s.filepath())
}

package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// fileState is the on-disk shape of a FileKV.
type fileState struct {
	Entries   map[string]string `json:"entries"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// FileKV keeps every entry in one JSON file, rewritten on each change.
type FileKV struct {
	mu       sync.Mutex
	state    *fileState
	filePath string
}

// OpenFileKV loads filePath, starting empty if it does not exist.
func OpenFileKV(filePath string) (*FileKV, error) {
	state, err := loadState(filePath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filePath, err)
	}
	return &FileKV{state: state, filePath: filePath}, nil
}

func loadState(filePath string) (*fileState, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileState{Entries: make(map[string]string)}, nil
		}
		return nil, err
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.Entries == nil {
		state.Entries = make(map[string]string)
	}
	return &state, nil
}

func (f *FileKV) Get(key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.state.Entries[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (f *FileKV) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.state.Entries[key]
	f.state.Entries[key] = string(value)
	if err := f.save(); err != nil {
		f.restore(key, prev, had)
		return err
	}
	return nil
}

func (f *FileKV) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, ok := f.state.Entries[key]
	if !ok {
		return nil
	}
	delete(f.state.Entries, key)
	if err := f.save(); err != nil {
		f.restore(key, prev, true)
		return err
	}
	return nil
}

// restore puts key back to its state before a failed save.
func (f *FileKV) restore(key, prev string, had bool) {
	if had {
		f.state.Entries[key] = prev
	} else {
		delete(f.state.Entries, key)
	}
}

// save must be called with mu held.
func (f *FileKV) save() error {
	f.state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(f.state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.filePath, data, 0644)
}

package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

var _ Store = (*File)(nil)

// File persists the credential slots as a JSON document with 0600
// permissions. Every mutation rewrites the whole file under the store lock,
// so per-key writes never interleave.
type File struct {
	mu     sync.Mutex
	path   string
	values map[Key]string
}

// NewFile loads (or lazily creates) a file-backed store at path. A missing
// file starts the store empty; an unreadable or corrupt file is treated the
// same way rather than failing the caller.
func NewFile(path string) *File {
	f := &File{path: path, values: make(map[Key]string)}
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &f.values)
	}
	return f
}

func (f *File) Get(key Key) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *File) Set(key Key, value string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return f.flush()
}

func (f *File) Delete(key Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return true
	}
	delete(f.values, key)
	return f.flush()
}

func (f *File) ClearAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = make(map[Key]string)
	f.flush()
}

// flush writes the current slots to disk. Caller holds the lock.
func (f *File) flush() bool {
	data, err := json.Marshal(f.values)
	if err != nil {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return false
	}
	return os.WriteFile(f.path, data, 0o600) == nil
}

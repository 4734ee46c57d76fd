package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File хранит все ключи одним JSON-объектом в файле.
// Каждая запись перечитывает файл и атомарно заменяет его через rename,
// поэтому чужие ключи, записанные другим процессом, сохраняются.
// Нечитаемый файл Get возвращает как ErrCorrupt, а Set и Remove перезаписывают его.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile создаёт хранилище по пути path. Каталог создаётся при первой записи.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Get(key string) (string, bool, error) {
	const op = "kv.File.Get"
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	v, ok := data[key]
	return v, ok, nil
}

func (f *File) Set(key, value string) error {
	const op = "kv.File.Set"
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return fmt.Errorf("%s: %w", op, err)
	}
	data[key] = value
	if err := f.save(data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (f *File) Remove(key string) error {
	const op = "kv.File.Remove"
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	corrupt := errors.Is(err, ErrCorrupt)
	if err != nil && !corrupt {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, ok := data[key]; !ok && !corrupt {
		return nil
	}
	delete(data, key)
	if err := f.save(data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// load читает файл. Для нечитаемого файла возвращает пустую карту вместе с ErrCorrupt.
func (f *File) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}
	data := make(map[string]string)
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return make(map[string]string), fmt.Errorf("%w: %s: %v", ErrCorrupt, f.path, err)
	}
	return data, nil
}

func (f *File) save(data map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".kv-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

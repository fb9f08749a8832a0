package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// File persists values in a yaml document. The file is re-read on every
// access so that a shell and a one-off command see each other's writes.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile returns a file store rooted at path. The file is created lazily.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, ErrMissingLocation
	}
	return &File{path: path}, nil
}

// Path returns the location of the state file.
func (f *File) Path() string {
	return f.path
}

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	values[key] = value
	return f.write(values)
}

func (f *File) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := values[k]; ok {
			delete(values, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.write(values)
}

func (f *File) read() (map[string]string, error) {
	values := make(map[string]string)
	content, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, ErrUnableToRead.Err(err)
	}
	if err := yaml.Unmarshal(content, &values); err != nil {
		return nil, ErrUnableToRead.MsgErr(fmt.Sprintf("unable to parse %s", f.path), err)
	}
	if values == nil {
		values = make(map[string]string)
	}
	return values, nil
}

func (f *File) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return ErrUnableToWrite.Err(err)
	}
	content, err := yaml.Marshal(values)
	if err != nil {
		return ErrUnableToWrite.Err(err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, content, os.FileMode(0600)); err != nil {
		return ErrUnableToWrite.Err(err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return ErrUnableToWrite.Err(err)
	}
	return nil
}

var _ KV = (*File)(nil)

package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Source resolves a command name to guest module bytes.
type Source interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// NotFoundError reports a name the source cannot resolve. Spawn turns
// it into the no-such-command exit rather than a failure.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "loader: no module for " + e.Name
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// MapSource serves modules from an in-memory map.
type MapSource map[string][]byte

func (s MapSource) Load(ctx context.Context, name string) ([]byte, error) {
	data, ok := s[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return data, nil
}

// DirSource serves modules from a directory, resolving bare names to
// <name>.wasm.
type DirSource string

func (s DirSource) Load(ctx context.Context, name string) ([]byte, error) {
	file := name
	if !strings.HasSuffix(file, ".wasm") {
		file += ".wasm"
	}
	data, err := os.ReadFile(filepath.Join(string(s), filepath.Base(file)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Name: name}
		}
		return nil, err
	}
	return data, nil
}

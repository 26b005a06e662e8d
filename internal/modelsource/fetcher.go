package modelsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/feeder"
)

var (
	ErrModelNotFound = errors.New("topology model not found")
	ErrMapsNotFound  = errors.New("equipment maps not found")
	ErrInvalidLine   = errors.New("invalid line name")
)

// Fetcher delivers the raw topology model for a line.
type Fetcher interface {
	Fetch(ctx context.Context, lineName string) (*feeder.Model, error)
}

// DirFetcher reads <dir>/<lineName>.json.
type DirFetcher struct {
	dir string
}

func NewDirFetcher(dir string) *DirFetcher {
	return &DirFetcher{dir: dir}
}

func (f *DirFetcher) Fetch(ctx context.Context, lineName string) (*feeder.Model, error) {
	if err := validLine(lineName); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(f.dir, lineName+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, lineName)
		}
		return nil, fmt.Errorf("read model %s: %w", lineName, err)
	}

	var m feeder.Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", lineName, err)
	}
	return &m, nil
}

// StaticFetcher serves models held in memory.
type StaticFetcher map[string]*feeder.Model

func (f StaticFetcher) Fetch(_ context.Context, lineName string) (*feeder.Model, error) {
	m, ok := f[lineName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, lineName)
	}
	return m, nil
}

// LoadMaps looks for <dir>/<lineName>.json, .yaml or .yml in that order.
func LoadMaps(dir, lineName string) (feeder.Maps, error) {
	if err := validLine(lineName); err != nil {
		return feeder.Maps{}, err
	}
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(dir, lineName+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return feeder.LoadMapsFile(path)
	}
	return feeder.Maps{}, fmt.Errorf("%w: %s", ErrMapsNotFound, lineName)
}

func validLine(lineName string) error {
	if lineName == "" || strings.ContainsAny(lineName, `/\`) || strings.Contains(lineName, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidLine, lineName)
	}
	return nil
}

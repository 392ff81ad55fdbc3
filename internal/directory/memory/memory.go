// Package memory is an in-process directory for development and tests. Its
// contents are lost when the process exits.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/sundayezeilo/shorttag/internal/directory"
	"github.com/sundayezeilo/shorttag/internal/errx"
)

var errNotFound = errors.New("tag not found")

// Directory is safe for concurrent use.
type Directory struct {
	mu   sync.RWMutex
	urls map[string]string
}

var _ directory.Backend = (*Directory)(nil)

// New returns an empty directory.
func New() *Directory {
	return &Directory{urls: make(map[string]string)}
}

func (d *Directory) Name() string { return "memory" }

func (d *Directory) Ping(context.Context) error { return nil }

func (d *Directory) Close() error { return nil }

func (d *Directory) Exists(_ context.Context, tag string) (bool, error) {
	if err := directory.CheckTag("memory.Exists", tag); err != nil {
		return false, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.urls[tag]
	return ok, nil
}

func (d *Directory) Get(_ context.Context, tag string) (string, error) {
	const op = "memory.Get"
	if err := directory.CheckTag(op, tag); err != nil {
		return "", err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	url, ok := d.urls[tag]
	if !ok {
		return "", errx.E(op, errx.NotFound, errNotFound)
	}
	return url, nil
}

func (d *Directory) Set(_ context.Context, tag, url string) error {
	if err := directory.CheckTag("memory.Set", tag); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls[tag] = url
	return nil
}

func (d *Directory) SetIfAbsent(_ context.Context, tag, url string) (bool, error) {
	if err := directory.CheckTag("memory.SetIfAbsent", tag); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.urls[tag]; ok {
		return false, nil
	}
	d.urls[tag] = url
	return true, nil
}

// Len reports the number of stored bindings.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.urls)
}

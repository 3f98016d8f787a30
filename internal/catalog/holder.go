package catalog

import (
	"sync"
	"sync/atomic"
)

// Holder serves the current catalogue and swaps it on Reload. Readers never
// block; a failed reload keeps the previous catalogue.
type Holder struct {
	path string

	mu  sync.Mutex
	cur atomic.Pointer[Catalog]
}

// NewHolder loads the catalogue at path (embedded when empty).
func NewHolder(path string) (*Holder, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	h := &Holder{path: path}
	h.cur.Store(c)
	return h, nil
}

// NewStaticHolder wraps an already loaded catalogue. Reload re-reads the
// embedded catalogue.
func NewStaticHolder(c *Catalog) *Holder {
	h := &Holder{}
	h.cur.Store(c)
	return h
}

func (h *Holder) Current() *Catalog { return h.cur.Load() }

// Path is the file Reload reads, empty for the embedded catalogue.
func (h *Holder) Path() string { return h.path }

func (h *Holder) Reload() (*Catalog, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, err := Load(h.path)
	if err != nil {
		return nil, err
	}
	h.cur.Store(c)
	return c, nil
}

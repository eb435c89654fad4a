package printer

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
)

// Lister returns the printers currently reachable.
type Lister interface {
	Printers(ctx context.Context) ([]Descriptor, error)
}

// Selector resolves and remembers the terminal's receipt printer.
type Selector struct {
	terminalID string
	store      Store
	lister     Lister

	mux     sync.RWMutex
	current *Descriptor
}

// NewSelector creates a Selector for terminalID.
func NewSelector(terminalID string, store Store, lister Lister) *Selector {
	return &Selector{terminalID: terminalID, store: store, lister: lister}
}

// Resolve re-validates the saved printer against the current printer list
// and persists the outcome.
func (s *Selector) Resolve(ctx context.Context) (Descriptor, error) {
	available, err := s.lister.Printers(ctx)
	if err != nil {
		return Descriptor{}, errors.Wrap(err, "list printers")
	}

	var saved *Descriptor
	switch d, err := s.store.Load(ctx, s.terminalID); {
	case err == nil:
		saved = &d
	case errors.Is(err, ErrNotSaved):
	default:
		return Descriptor{}, errors.Wrap(err, "load saved printer")
	}

	chosen, err := Choose(saved, available)
	if err != nil {
		return Descriptor{}, err
	}
	if saved == nil || saved.Name != chosen.Name {
		if err := s.store.Save(ctx, s.terminalID, chosen); err != nil {
			return Descriptor{}, errors.Wrap(err, "save printer")
		}
	}
	s.set(chosen)
	return chosen, nil
}

// Select stores the operator's choice. The printer must be in the current list.
func (s *Selector) Select(ctx context.Context, name string) (Descriptor, error) {
	available, err := s.lister.Printers(ctx)
	if err != nil {
		return Descriptor{}, errors.Wrap(err, "list printers")
	}
	for _, d := range available {
		if d.Name != name {
			continue
		}
		if err := s.store.Save(ctx, s.terminalID, d); err != nil {
			return Descriptor{}, errors.Wrap(err, "save printer")
		}
		s.set(d)
		return d, nil
	}
	return Descriptor{}, errors.Wrapf(ErrUnknownPrinter, "%q", name)
}

// Current returns the last resolved printer.
func (s *Selector) Current() (Descriptor, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	if s.current == nil {
		return Descriptor{}, false
	}
	return *s.current, true
}

// Available lists the printers the print server reports.
func (s *Selector) Available(ctx context.Context) ([]Descriptor, error) {
	return s.lister.Printers(ctx)
}

func (s *Selector) set(d Descriptor) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.current = &d
}

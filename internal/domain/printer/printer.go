// Package printer models receipt printers reported by the print server and
// the operator's saved choice.
package printer

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNoPrinters is returned when the print server reports no printers.
var ErrNoPrinters = errors.New("no printers available")

// ErrUnknownPrinter is returned when selecting a printer not in the list.
var ErrUnknownPrinter = errors.New("printer not available")

// ErrNotSaved is returned by Store.Load when the terminal has no saved choice.
var ErrNotSaved = errors.New("no saved printer")

// Columns is the characters-per-line capacity per font.
type Columns struct {
	FontA int
	FontB int
}

// ReceiptProfile describes the paper a printer is loaded with.
type ReceiptProfile struct {
	Roll             string
	PrintableWidthMM int
	Columns          Columns
}

// Descriptor identifies a printer.
type Descriptor struct {
	Name         string
	IsDefault    bool
	Profile      *ReceiptProfile
	LanguageHint string
}

// Job controls one print request.
type Job struct {
	Copies     int
	Cut        bool
	OpenDrawer bool
}

// DefaultJob prints one copy and cuts the paper.
func DefaultJob() Job {
	return Job{Copies: 1, Cut: true}
}

// Store persists the chosen printer per terminal.
type Store interface {
	Load(ctx context.Context, terminalID string) (Descriptor, error)
	Save(ctx context.Context, terminalID string, d Descriptor) error
}

// Choose picks the printer to use from available. A saved printer still in
// the list wins and is refreshed from the list; otherwise the default printer,
// otherwise the first one.
func Choose(saved *Descriptor, available []Descriptor) (Descriptor, error) {
	if len(available) == 0 {
		return Descriptor{}, ErrNoPrinters
	}
	if saved != nil {
		for _, d := range available {
			if d.Name == saved.Name {
				return d, nil
			}
		}
	}
	for _, d := range available {
		if d.IsDefault {
			return d, nil
		}
	}
	return available[0], nil
}

package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pos/internal/domain/printer"
)

const (
	loadPrinterSQL = `SELECT name, is_default, roll, printable_width_mm, font_a_columns, font_b_columns, language_hint
	FROM printer_preferences WHERE terminal_id = $1`

	savePrinterSQL = `INSERT INTO printer_preferences
	(terminal_id, name, is_default, roll, printable_width_mm, font_a_columns, font_b_columns, language_hint, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	ON CONFLICT (terminal_id) DO UPDATE SET
		name = EXCLUDED.name,
		is_default = EXCLUDED.is_default,
		roll = EXCLUDED.roll,
		printable_width_mm = EXCLUDED.printable_width_mm,
		font_a_columns = EXCLUDED.font_a_columns,
		font_b_columns = EXCLUDED.font_b_columns,
		language_hint = EXCLUDED.language_hint,
		updated_at = now()`
)

var _ printer.Store = (*PrinterPreferenceStore)(nil)

// PrinterPreferenceStore persists the chosen printer per terminal.
type PrinterPreferenceStore struct {
	pool *pgxpool.Pool
}

// NewPrinterPreferenceStore returns a PrinterPreferenceStore that uses the given pool.
func NewPrinterPreferenceStore(pool *pgxpool.Pool) *PrinterPreferenceStore {
	return &PrinterPreferenceStore{pool: pool}
}

// Load returns the saved printer, or printer.ErrNotSaved.
func (s *PrinterPreferenceStore) Load(ctx context.Context, terminalID string) (printer.Descriptor, error) {
	var (
		d             printer.Descriptor
		roll          *string
		width, fa, fb *int
	)
	err := s.pool.QueryRow(ctx, loadPrinterSQL, terminalID).
		Scan(&d.Name, &d.IsDefault, &roll, &width, &fa, &fb, &d.LanguageHint)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return printer.Descriptor{}, printer.ErrNotSaved
		}
		return printer.Descriptor{}, errors.Wrapf(err, "load printer of %q", terminalID)
	}
	if roll != nil || width != nil || fa != nil || fb != nil {
		d.Profile = &printer.ReceiptProfile{
			Roll:             deref(roll),
			PrintableWidthMM: deref(width),
			Columns:          printer.Columns{FontA: deref(fa), FontB: deref(fb)},
		}
	}
	return d, nil
}

// Save stores d as the terminal's printer.
func (s *PrinterPreferenceStore) Save(ctx context.Context, terminalID string, d printer.Descriptor) error {
	var (
		roll          *string
		width, fa, fb *int
	)
	if p := d.Profile; p != nil {
		roll, width, fa, fb = &p.Roll, &p.PrintableWidthMM, &p.Columns.FontA, &p.Columns.FontB
	}
	_, err := s.pool.Exec(ctx, savePrinterSQL, terminalID, d.Name, d.IsDefault, roll, width, fa, fb, d.LanguageHint)
	if err != nil {
		return errors.Wrapf(err, "save printer of %q", terminalID)
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

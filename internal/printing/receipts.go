package printing

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-pos/internal/domain/printer"
	"github.com/xenking/kart-pos/internal/domain/sale"
)

// Receipts prints settled sales on the terminal's selected printer.
type Receipts struct {
	client   *Client
	selector *printer.Selector
	job      printer.Job
}

// NewReceipts creates a Receipts printer.
func NewReceipts(client *Client, selector *printer.Selector, job printer.Job) *Receipts {
	return &Receipts{client: client, selector: selector, job: job}
}

// PrintReceipt prints r, resolving the printer first if none is selected yet.
func (p *Receipts) PrintReceipt(ctx context.Context, r sale.Receipt) error {
	desc, ok := p.selector.Current()
	if !ok {
		var err error
		if desc, err = p.selector.Resolve(ctx); err != nil {
			return errors.Wrap(err, "resolve printer")
		}
	}
	return p.client.Print(ctx, desc, r, p.job)
}

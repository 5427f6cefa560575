package nemweb

import (
	"context"
	"errors"
	"time"

	"aemo-price-feed/internal/nem"
)

var (
	// ErrNotModified signals the newest listed report is the one already processed.
	ErrNotModified = errors.New("nemweb: report not modified")
	// ErrNoReport signals the listing exposed no report for the product.
	ErrNoReport = errors.New("nemweb: no report available")
)

// Bundle is a downloaded NEMWEB report archive.
type Bundle struct {
	Name        string
	PublishedAt time.Time
	Data        []byte
}

// Source retrieves the newest report bundle for a product stream.
type Source interface {
	Latest(ctx context.Context, kind nem.ProductKind, lastSeen string) (Bundle, error)
}

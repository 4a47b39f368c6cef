package orderbook

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// OfferSource fetches the current venue ladder for one native book.
type OfferSource interface {
	Offers(ctx context.Context) (RawBook, error)
}

// Poller keeps a native book current by re-fetching its ladder on a fixed
// interval. Fetch failures are logged and the loop continues; stale data is
// simply not replaced until the next successful poll.
type Poller struct {
	book     *Book
	source   OfferSource
	interval time.Duration
	log      zerolog.Logger
}

// NewPoller creates a poller for book backed by source.
func NewPoller(book *Book, source OfferSource, interval time.Duration, log zerolog.Logger) *Poller {
	return &Poller{
		book:     book,
		source:   source,
		interval: interval,
		log:      log.With().Str("component", "book_poller").Str("book", book.base.Code()).Logger(),
	}
}

// Run polls until ctx is cancelled. The first fetch happens immediately so
// the book is usable as soon as the venue answers.
func (p *Poller) Run(ctx context.Context) {
	p.fetch(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Debug().Msg("Book poller stopped")
			return
		case <-ticker.C:
			p.fetch(ctx)
		}
	}
}

func (p *Poller) fetch(ctx context.Context) {
	raw, err := p.source.Offers(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.log.Error().Err(err).Msg("Failed to fetch offers")
		return
	}
	p.book.Ingest(raw)
}

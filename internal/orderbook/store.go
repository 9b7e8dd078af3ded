package orderbook

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

// Store maintains top-of-book state for every subscribed token and fans
// updates out to the detector.
type Store struct {
	books map[string]*types.TopOfBook
	mu    sync.RWMutex

	logger     *zap.Logger
	in         <-chan *types.BookUpdate
	updateChan chan *types.BookUpdate
	wg         sync.WaitGroup
}

// Config holds store configuration.
type Config struct {
	Logger        *zap.Logger
	UpdateChannel <-chan *types.BookUpdate
	FanoutBuffer  int
}

// New creates a new top-of-book store.
func New(cfg *Config) *Store {
	buffer := cfg.FanoutBuffer
	if buffer <= 0 {
		buffer = 100000
	}

	return &Store{
		books:      make(map[string]*types.TopOfBook),
		logger:     cfg.Logger,
		in:         cfg.UpdateChannel,
		updateChan: make(chan *types.BookUpdate, buffer),
	}
}

// Start consumes normalized updates from the stream pool.
func (s *Store) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.processUpdates(ctx)
}

func (s *Store) processUpdates(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("orderbook-store-stopping")
			return
		case update, ok := <-s.in:
			if !ok {
				return
			}
			s.Apply(update)
		}
	}
}

// Apply merges one update into the store and forwards it downstream.
// A full snapshot replaces every field; an incremental update only
// overwrites the fields it carries, so a price_change that restates the
// book's best ask leaves the entry unchanged apart from its revision and
// timestamp.
func (s *Store) Apply(update *types.BookUpdate) {
	s.mu.Lock()
	book, exists := s.books[update.TokenID]
	if !exists {
		book = &types.TopOfBook{TokenID: update.TokenID}
		s.books[update.TokenID] = book
	}

	if update.Snapshot {
		book.BestBid = update.BestBid
		book.BestAsk = update.BestAsk
		book.AskSize = update.AskSize
	} else {
		if update.BestBid != nil {
			book.BestBid = update.BestBid
		}
		if update.BestAsk != nil {
			book.BestAsk = update.BestAsk
		}
		if update.AskSize != nil {
			book.AskSize = update.AskSize
		}
	}

	book.Revision++
	book.UpdatedAt = update.Timestamp
	tracked := len(s.books)
	s.mu.Unlock()

	UpdatesTotal.Inc()
	BooksTracked.Set(float64(tracked))

	select {
	case s.updateChan <- update:
	default:
		UpdatesDroppedTotal.Inc()
		s.logger.Error("orderbook-update-channel-full-dropping",
			zap.String("token-id", update.TokenID))
	}
}

// Get returns a copy of the top of book for one token.
func (s *Store) Get(tokenID string) (*types.TopOfBook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, exists := s.books[tokenID]
	if !exists {
		return nil, false
	}
	return book.Clone(), true
}

// MarketQuote is the consistent per-market join of both top-of-books,
// read under a single lock so the detector and executor never see a torn
// (yes_ask, no_ask, yes_size, no_size) tuple.
type MarketQuote struct {
	Market  *types.Market
	YesAsk  *decimal.Decimal
	NoAsk   *decimal.Decimal
	YesSize *decimal.Decimal
	NoSize  *decimal.Decimal
	AsOf    time.Time
}

// Complete reports whether both asks are present.
func (q *MarketQuote) Complete() bool {
	return q.YesAsk != nil && q.NoAsk != nil
}

// CombinedAsk returns ask(YES) + ask(NO).
func (q *MarketQuote) CombinedAsk() (decimal.Decimal, bool) {
	if !q.Complete() {
		return decimal.Zero, false
	}
	return q.YesAsk.Add(*q.NoAsk), true
}

// Profit returns 1 - combined ask.
func (q *MarketQuote) Profit() (decimal.Decimal, bool) {
	combined, ok := q.CombinedAsk()
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(1).Sub(combined), true
}

// Quote reads both sides of a market atomically.
func (s *Store) Quote(market *types.Market) *MarketQuote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quote := &MarketQuote{Market: market, AsOf: time.Now()}

	if yes, ok := s.books[market.YesToken.TokenID]; ok {
		quote.YesAsk = yes.BestAsk
		quote.YesSize = yes.AskSize
	}
	if no, ok := s.books[market.NoToken.TokenID]; ok {
		quote.NoAsk = no.BestAsk
		quote.NoSize = no.AskSize
	}

	return quote
}

// Reset drops all book state, e.g. after a full resubscribe.
func (s *Store) Reset() {
	s.mu.Lock()
	s.books = make(map[string]*types.TopOfBook)
	s.mu.Unlock()

	BooksTracked.Set(0)
}

// UpdateChan returns the fan-out channel consumed by the detector.
func (s *Store) UpdateChan() <-chan *types.BookUpdate {
	return s.updateChan
}

// Close waits for the process loop and closes the fan-out channel.
func (s *Store) Close() {
	s.wg.Wait()
	close(s.updateChan)
}

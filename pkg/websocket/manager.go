package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

// CloseCodeZombie is sent when the watchdog force-closes a silent connection.
const CloseCodeZombie = 4000

// ladder is the locally cached order book for one asset, keyed by price.
type ladder struct {
	bids map[string]decimal.Decimal
	asks map[string]decimal.Decimal
}

func newLadder() *ladder {
	return &ladder{
		bids: make(map[string]decimal.Decimal),
		asks: make(map[string]decimal.Decimal),
	}
}

// bestAsk returns the lowest ask price and its size.
func (l *ladder) bestAsk() (price, size decimal.Decimal, ok bool) {
	for p, s := range l.asks {
		d, err := decimal.NewFromString(p)
		if err != nil {
			continue
		}
		if !ok || d.LessThan(price) {
			price, size, ok = d, s, true
		}
	}
	return price, size, ok
}

// bestBid returns the highest bid price and its size.
func (l *ladder) bestBid() (price, size decimal.Decimal, ok bool) {
	for p, s := range l.bids {
		d, err := decimal.NewFromString(p)
		if err != nil {
			continue
		}
		if !ok || d.GreaterThan(price) {
			price, size, ok = d, s, true
		}
	}
	return price, size, ok
}

// Config holds the configuration for a single stream connection.
type Config struct {
	ID          int
	URL         string
	DialTimeout time.Duration
	Reconnect   ReconnectConfig
	Logger      *zap.Logger
}

// Manager owns one WebSocket connection: its shard of assets, the local
// ladder cache, and the listen/reconnect loop.
type Manager struct {
	cfg          Config
	logger       *zap.Logger
	reconnectMgr *ReconnectManager

	conn    *websocket.Conn
	connMu  sync.Mutex
	ladders map[string]*ladder
	shard   []string
	mu      sync.RWMutex

	out chan<- *types.BookUpdate

	connected   atomic.Bool
	started     atomic.Bool
	lastMessage atomic.Int64 // unix seconds

	wg sync.WaitGroup
}

// New creates a new connection manager writing normalized updates to out.
func New(cfg Config, out chan<- *types.BookUpdate) *Manager {
	return &Manager{
		cfg:          cfg,
		logger:       cfg.Logger.With(zap.Int("conn-id", cfg.ID)),
		reconnectMgr: NewReconnectManager(cfg.Reconnect),
		ladders:      make(map[string]*ladder),
		out:          out,
	}
}

// SetShard replaces this connection's asset slice. The new shard takes
// effect on the next (re)subscription.
func (m *Manager) SetShard(tokenIDs []string) {
	m.mu.Lock()
	m.shard = append([]string(nil), tokenIDs...)
	m.ladders = make(map[string]*ladder)
	m.mu.Unlock()
}

// Shard returns a copy of the current asset slice.
func (m *Manager) Shard() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.shard...)
}

// Start connects, subscribes the shard and runs the listen loop until the
// context is cancelled. An empty shard is not connected at all.
func (m *Manager) Start(ctx context.Context) error {
	if len(m.Shard()) == 0 {
		m.logger.Debug("empty-shard-not-connecting")
		return nil
	}

	if !m.started.CompareAndSwap(false, true) {
		return nil
	}

	err := m.connect(ctx)
	if err != nil {
		m.started.Store(false)
		return fmt.Errorf("initial connection: %w", err)
	}

	err = m.subscribeShard()
	if err != nil {
		m.started.Store(false)
		return fmt.Errorf("initial subscription: %w", err)
	}

	m.wg.Add(1)
	go m.listenLoop(ctx)

	return nil
}

func (m *Manager) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.DialTimeout}

	conn, _, err := dialer.DialContext(ctx, m.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	m.connMu.Lock()
	m.conn = conn
	m.connMu.Unlock()

	m.connected.Store(true)
	m.lastMessage.Store(time.Now().Unix())
	ActiveConnections.Inc()

	m.logger.Info("websocket-connected", zap.String("url", m.cfg.URL))

	return nil
}

func (m *Manager) subscribeShard() error {
	shard := m.Shard()
	if len(shard) == 0 {
		return nil
	}

	msg := map[string]interface{}{
		"assets_ids": shard,
		"type":       "market",
	}

	m.connMu.Lock()
	conn := m.conn
	m.connMu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	err := conn.WriteJSON(msg)
	if err != nil {
		return fmt.Errorf("write subscribe message: %w", err)
	}

	m.logger.Info("subscribed-shard", zap.Int("assets", len(shard)))

	return nil
}

// listenLoop reads messages until disconnect, then reconnects with backoff
// and re-subscribes the shard. Exits when the context is cancelled.
func (m *Manager) listenLoop(ctx context.Context) {
	defer m.wg.Done()

	for {
		connectedAt := time.Now()
		m.readUntilError(ctx)
		ConnectionDuration.Observe(time.Since(connectedAt).Seconds())

		m.connected.Store(false)
		ActiveConnections.Dec()

		if ctx.Err() != nil {
			return
		}

		delay := m.reconnectMgr.NextDelay()
		m.logger.Warn("connection-lost-reconnecting", zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		ReconnectAttemptsTotal.Inc()

		err := m.connect(ctx)
		if err != nil {
			m.logger.Error("reconnect-failed", zap.Error(err))
			continue
		}

		err = m.subscribeShard()
		if err != nil {
			m.logger.Error("resubscribe-failed", zap.Error(err))
			m.ForceClose(websocket.CloseGoingAway)
			continue
		}

		m.reconnectMgr.Reset()
	}
}

func (m *Manager) readUntilError(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		m.connMu.Lock()
		conn := m.conn
		m.connMu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			m.logger.Warn("read-error", zap.Error(err))
			return
		}

		m.lastMessage.Store(time.Now().Unix())
		m.handleRaw(message)
	}
}

// handleRaw parses a raw frame. The venue sends an array of messages;
// anything else is a heartbeat or control frame.
func (m *Manager) handleRaw(message []byte) {
	var msgs []types.StreamMessage
	err := json.Unmarshal(message, &msgs)
	if err != nil {
		if len(message) < 10 {
			return // heartbeat
		}
		m.logger.Debug("unparseable-message", zap.Error(err), zap.Int("bytes", len(message)))
		return
	}

	for i := range msgs {
		msg := &msgs[i]
		MessagesReceivedTotal.WithLabelValues(msg.EventType).Inc()

		switch msg.EventType {
		case "book":
			m.applyBook(msg)
		case "price_change":
			m.applyPriceChange(msg)
		default:
			// last_trade_price and friends are ignored
		}
	}
}

// applyBook replaces the asset's ladder with the full snapshot and emits
// the derived top of book.
func (m *Manager) applyBook(msg *types.StreamMessage) {
	lad := newLadder()
	for _, lvl := range msg.Bids {
		if d := types.ParseDecimal(lvl.Size); d != nil && d.IsPositive() {
			lad.bids[lvl.Price] = *d
		}
	}
	for _, lvl := range msg.Asks {
		if d := types.ParseDecimal(lvl.Size); d != nil && d.IsPositive() {
			lad.asks[lvl.Price] = *d
		}
	}

	m.mu.Lock()
	m.ladders[msg.AssetID] = lad
	m.mu.Unlock()

	update := &types.BookUpdate{
		TokenID:   msg.AssetID,
		Snapshot:  true,
		Timestamp: time.Now(),
	}
	if price, _, ok := lad.bestBid(); ok {
		update.BestBid = &price
	}
	if price, size, ok := lad.bestAsk(); ok {
		update.BestAsk = &price
		update.AskSize = &size
	}

	m.emit(update)
}

// applyPriceChange applies an incremental update. When the change is a
// SELL at the current best ask, the carried size is authoritative for
// ask-size-at-best; otherwise the ladder is patched and the size
// recomputed from it.
func (m *Manager) applyPriceChange(msg *types.StreamMessage) {
	price := types.ParseDecimal(msg.Price)
	size := types.ParseDecimal(msg.Size)
	bestBid := types.ParseDecimal(msg.BestBid)
	bestAsk := types.ParseDecimal(msg.BestAsk)

	m.mu.Lock()
	lad, ok := m.ladders[msg.AssetID]
	if !ok {
		lad = newLadder()
		m.ladders[msg.AssetID] = lad
	}

	// Patch the ladder level
	if price != nil && size != nil {
		side := lad.bids
		if msg.Side == "SELL" {
			side = lad.asks
		}
		if size.IsPositive() {
			side[msg.Price] = *size
		} else {
			delete(side, msg.Price)
		}
	}

	var askSize *decimal.Decimal
	if msg.Side == "SELL" && price != nil && bestAsk != nil && price.Equal(*bestAsk) && size != nil && size.IsPositive() {
		askSize = size
	} else if _, s, ok := lad.bestAsk(); ok {
		askSize = &s
	}
	m.mu.Unlock()

	m.emit(&types.BookUpdate{
		TokenID:   msg.AssetID,
		BestBid:   bestBid,
		BestAsk:   bestAsk,
		AskSize:   askSize,
		Timestamp: time.Now(),
	})
}

func (m *Manager) emit(update *types.BookUpdate) {
	select {
	case m.out <- update:
	default:
		UpdatesDroppedTotal.WithLabelValues("channel_full").Inc()
		m.logger.Warn("update-channel-full", zap.String("token-id", update.TokenID))
	}
}

// AskSizeFromLadder reads the cached ask size at the best ask for a token.
// Used as a fallback when a price change carried no size.
func (m *Manager) AskSizeFromLadder(tokenID string) *decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lad, ok := m.ladders[tokenID]
	if !ok {
		return nil
	}
	if _, size, ok := lad.bestAsk(); ok {
		return &size
	}
	return nil
}

// Started reports whether the listen loop has been launched.
func (m *Manager) Started() bool {
	return m.started.Load()
}

// IsConnected reports whether the connection is currently up.
func (m *Manager) IsConnected() bool {
	return m.connected.Load()
}

// SecondsSinceLastMessage returns how long the connection has been silent.
func (m *Manager) SecondsSinceLastMessage() float64 {
	last := m.lastMessage.Load()
	if last == 0 {
		return 0
	}
	return time.Since(time.Unix(last, 0)).Seconds()
}

// ForceClose closes the underlying connection with the given close code,
// driving the listen loop into its reconnect path.
func (m *Manager) ForceClose(code int) {
	m.connMu.Lock()
	conn := m.conn
	m.connMu.Unlock()

	if conn == nil {
		return
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, "forced close"), deadline)
	_ = conn.Close()
}

// Close shuts the connection down and waits for the listen loop to exit.
func (m *Manager) Close() {
	m.ForceClose(websocket.CloseNormalClosure)
	m.wg.Wait()
}

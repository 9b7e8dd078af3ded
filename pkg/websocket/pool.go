package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

// MaxAssetsPerConn is the venue's cap on assets per connection.
// One binary market consumes two assets.
const MaxAssetsPerConn = 500

// PoolConfig holds configuration for the connection pool.
type PoolConfig struct {
	Size             int
	URL              string
	DialTimeout      time.Duration
	Reconnect        ReconnectConfig
	MessageBuffer    int
	WatchdogInterval time.Duration
	StaleThreshold   time.Duration
	Logger           *zap.Logger
}

// Pool multiplexes the order-book stream over N connections. Assets are
// sharded by slicing the ordered token list: connection i owns
// tokens[i*500 : (i+1)*500]. A shard is only subscribed when non-empty.
type Pool struct {
	cfg      PoolConfig
	managers []*Manager
	logger   *zap.Logger

	tokenToConn map[string]int
	mu          sync.RWMutex

	updateChan chan *types.BookUpdate
	ctx        context.Context
	wg         sync.WaitGroup
}

// NewPool creates a pool of Size connection managers sharing one output
// channel.
func NewPool(cfg PoolConfig) *Pool {
	updateChan := make(chan *types.BookUpdate, cfg.Size*cfg.MessageBuffer)

	p := &Pool{
		cfg:         cfg,
		managers:    make([]*Manager, cfg.Size),
		logger:      cfg.Logger,
		tokenToConn: make(map[string]int),
		updateChan:  updateChan,
	}

	for i := range cfg.Size {
		p.managers[i] = New(Config{
			ID:          i,
			URL:         cfg.URL,
			DialTimeout: cfg.DialTimeout,
			Reconnect:   cfg.Reconnect,
			Logger:      cfg.Logger,
		}, updateChan)
	}

	return p
}

// ShardTokens slices the ordered token list into per-connection shards of
// at most MaxAssetsPerConn assets each.
func ShardTokens(tokenIDs []string, size int) [][]string {
	shards := make([][]string, size)
	for i := range size {
		start := i * MaxAssetsPerConn
		if start >= len(tokenIDs) {
			break
		}
		end := start + MaxAssetsPerConn
		if end > len(tokenIDs) {
			end = len(tokenIDs)
		}
		shards[i] = tokenIDs[start:end]
	}
	return shards
}

// Start assigns shards for the given token list, connects every non-empty
// shard and launches the zombie watchdog.
func (p *Pool) Start(ctx context.Context, tokenIDs []string) error {
	p.ctx = ctx
	p.assignShards(tokenIDs)

	var startErrs []error
	for _, mgr := range p.managers {
		err := mgr.Start(ctx)
		if err != nil {
			startErrs = append(startErrs, err)
		}
	}
	if len(startErrs) > 0 {
		return fmt.Errorf("failed to start %d connections: %v", len(startErrs), startErrs)
	}

	p.wg.Add(1)
	go p.watchdog(ctx)

	p.logger.Info("websocket-pool-started",
		zap.Int("connections", p.cfg.Size),
		zap.Int("assets", len(tokenIDs)))

	return nil
}

// assignShards records the slice shards and the token->connection index.
func (p *Pool) assignShards(tokenIDs []string) {
	shards := ShardTokens(tokenIDs, p.cfg.Size)

	p.mu.Lock()
	p.tokenToConn = make(map[string]int, len(tokenIDs))
	for i, shard := range shards {
		p.managers[i].SetShard(shard)
		for _, tokenID := range shard {
			p.tokenToConn[tokenID] = i
		}
	}
	subscribed := len(p.tokenToConn)
	p.mu.Unlock()

	SubscriptionCount.Set(float64(subscribed))
}

// Reshard replaces the asset list and forces every connection to drop so
// the reconnect path re-subscribes the new shards. Used when the market
// set changes beyond the refresh tolerance.
func (p *Pool) Reshard(tokenIDs []string) {
	p.logger.Info("resharding-pool", zap.Int("assets", len(tokenIDs)))
	p.assignShards(tokenIDs)

	for _, mgr := range p.managers {
		switch {
		case mgr.IsConnected():
			mgr.ForceClose(CloseCodeZombie)
		case !mgr.Started() && len(mgr.Shard()) > 0 && p.ctx != nil:
			// A previously empty shard became populated; bring it up now.
			err := mgr.Start(p.ctx)
			if err != nil {
				p.logger.Error("shard-start-failed", zap.Error(err))
			}
		}
	}
}

// watchdog force-closes connections that have been silent for longer than
// the stale threshold. Many venues drop clients without a close frame, so
// a silent-but-open connection must be treated as dead.
func (p *Pool) watchdog(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweepZombies()
		}
	}
}

// sweepZombies force-closes every connected manager silent beyond the
// stale threshold.
func (p *Pool) sweepZombies() {
	for i, mgr := range p.managers {
		if !mgr.IsConnected() {
			continue
		}

		silent := mgr.SecondsSinceLastMessage()
		if silent > p.cfg.StaleThreshold.Seconds() {
			p.logger.Warn("zombie-connection-detected",
				zap.Int("conn-id", i),
				zap.Float64("seconds-silent", silent))
			ZombieConnectionsTotal.Inc()
			mgr.ForceClose(CloseCodeZombie)
		}
	}
}

// UpdateChan returns the multiplexed book-update channel.
func (p *Pool) UpdateChan() <-chan *types.BookUpdate {
	return p.updateChan
}

// AskSizeAt reads the cached ladder ask size for a token from the
// connection that owns it.
func (p *Pool) AskSizeAt(tokenID string) *decimal.Decimal {
	p.mu.RLock()
	idx, ok := p.tokenToConn[tokenID]
	p.mu.RUnlock()

	if !ok {
		return nil
	}

	return p.managers[idx].AskSizeFromLadder(tokenID)
}

// ConnectedCount returns how many connections are currently up.
func (p *Pool) ConnectedCount() int {
	count := 0
	for _, mgr := range p.managers {
		if mgr.IsConnected() {
			count++
		}
	}
	return count
}

// Size returns the number of connections in the pool.
func (p *Pool) Size() int {
	return p.cfg.Size
}

// SubscribedCount returns the number of assets assigned to shards.
func (p *Pool) SubscribedCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tokenToConn)
}

// ConnectionAges returns per-connection silence durations for diagnostics.
func (p *Pool) ConnectionAges() []string {
	ages := make([]string, len(p.managers))
	for i, mgr := range p.managers {
		if mgr.IsConnected() {
			ages[i] = fmt.Sprintf("%.0fs", mgr.SecondsSinceLastMessage())
		} else {
			ages[i] = "down"
		}
	}
	return ages
}

// Close shuts down all connections and waits for the watchdog to exit.
func (p *Pool) Close() {
	p.logger.Info("closing-websocket-pool")

	var closeWg sync.WaitGroup
	for _, mgr := range p.managers {
		closeWg.Add(1)
		go func(m *Manager) {
			defer closeWg.Done()
			m.Close()
		}(mgr)
	}
	closeWg.Wait()

	p.wg.Wait()
	close(p.updateChan)

	p.logger.Info("websocket-pool-closed")
}

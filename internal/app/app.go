package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/polyarb/polyarb/internal/balance"
	"github.com/polyarb/polyarb/internal/detector"
	"github.com/polyarb/polyarb/internal/execution"
	"github.com/polyarb/polyarb/internal/markets"
	"github.com/polyarb/polyarb/internal/notify"
	"github.com/polyarb/polyarb/internal/orderbook"
	"github.com/polyarb/polyarb/internal/redemption"
	"github.com/polyarb/polyarb/internal/storage"
	"github.com/polyarb/polyarb/pkg/config"
	"github.com/polyarb/polyarb/pkg/healthprobe"
	"github.com/polyarb/polyarb/pkg/httpserver"
	"github.com/polyarb/polyarb/pkg/types"
	"github.com/polyarb/polyarb/pkg/websocket"
)

// Background loop cadences.
const (
	redemptionInterval   = 5 * time.Minute
	statsHistoryInterval = time.Hour
	minuteStatsInterval  = time.Minute
	balanceInterval      = time.Minute
	statsLogInterval     = time.Minute
)

// Options holds run options.
type Options struct {
	// Polling selects the legacy polling scanner instead of streaming.
	Polling bool
}

// App is the orchestrator: it boots the components, owns the single
// execution lock and runs the background loops.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	polling bool

	health     *healthprobe.HealthChecker
	httpServer *httpserver.Server
	marketSvc  *markets.Service
	negRisk    *markets.NegRiskCache
	pool       *websocket.Pool
	bookStore  *orderbook.Store
	det        *detector.Detector
	exec       *execution.Executor
	bal        *balance.Cache
	store      storage.Storage
	writer     *storage.AsyncWriter
	notifier   notify.Notifier
	redeemer   redemption.Redeemer

	// executionLock serialises the whole detect -> reserve -> submit
	// sequence; only one market may be in execution at a time because
	// the balance cache assumes a serial view.
	executionLock sync.Mutex
	alertChan     chan *types.Alert

	lastHourlyUpdates uint64
	lastMinuteUpdates uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

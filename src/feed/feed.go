// Package feed is the streaming trade feed client. It owns the websocket,
// replays subscriptions on every connect and runs the reconnect state machine
// disconnected -> connecting -> connected, halting after the configured number
// of failed reconnects until re-armed.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"market-analytics/src/helpers"
	"market-analytics/src/logger"
	"market-analytics/src/models"
)

const (
	writeWait = 10 * time.Second
	// read deadline; the server pings more often than this
	pongWait = 60 * time.Second
)

// LiveFeed implements interfaces.ILiveFeed over a websocket.
type LiveFeed struct {
	URL         string
	Token       string
	MaxAttempts int
	BaseDelay   time.Duration
	Dialer      *websocket.Dialer
	Logger      *logger.Logger

	mu       sync.Mutex
	state    string
	attempts int
	symbols  map[string]bool
	conn     *websocket.Conn
	cancel   context.CancelFunc
	running  bool
	rearm    chan struct{}
	writeMu  sync.Mutex
	out      chan<- models.MFeedEvent
	loopDone chan struct{}
}

// -----------------------------------------------------------------------------

func NewLiveFeed(cfg models.MFeedConfig, log *logger.Logger) *LiveFeed {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &LiveFeed{
		URL:         cfg.URL,
		Token:       cfg.Token,
		MaxAttempts: cfg.MaxReconnectAttempts,
		BaseDelay:   time.Duration(cfg.ReconnectDelayMs) * time.Millisecond,
		Dialer:      websocket.DefaultDialer,
		Logger:      log.Named("LiveFeed"),
		state:       models.ConnDisconnected,
		symbols:     make(map[string]bool),
		rearm:       make(chan struct{}, 1),
	}
}

// -----------------------------------------------------------------------------

// Start launches the connection loop.
func (f *LiveFeed) Start(parentCtx context.Context, out chan<- models.MFeedEvent, wg *sync.WaitGroup) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return fmt.Errorf("live feed is already running")
	}

	ctx, cancel := context.WithCancel(parentCtx)
	f.cancel = cancel
	f.out = out
	f.running = true
	f.loopDone = make(chan struct{})

	wg.Add(1)
	go f.runLoop(ctx, wg)
	f.Logger.Info("Started live feed: %s", f.URL)
	return nil
}

// -----------------------------------------------------------------------------

// Close stops the loop and releases the connection. Safe to call twice.
func (f *LiveFeed) Close() error {
	f.mu.Lock()
	cancel := f.cancel
	conn := f.conn
	done := f.loopDone
	f.cancel = nil
	f.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if conn != nil {
		_ = conn.Close()
	}
	<-done
	return nil
}

// -----------------------------------------------------------------------------

func (f *LiveFeed) State() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// -----------------------------------------------------------------------------

// Attempts returns the number of consecutive failed reconnects.
func (f *LiveFeed) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// -----------------------------------------------------------------------------

// Reconnect re-arms a halted loop. No-op in any other state.
func (f *LiveFeed) Reconnect() {
	select {
	case f.rearm <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------

// Subscribe registers symbol. A halted feed is re-armed, also when symbol
// is already registered.
func (f *LiveFeed) Subscribe(symbol string) {
	f.mu.Lock()
	halted := f.state == models.ConnHalted
	if f.symbols[symbol] {
		f.mu.Unlock()
		if halted {
			f.Reconnect()
		}
		return
	}
	f.symbols[symbol] = true
	conn := f.conn
	f.mu.Unlock()

	if conn != nil {
		f.send(conn, models.MFeedControl{Type: "subscribe", Symbol: symbol})
	}
	if halted {
		f.Reconnect()
	}
}

// -----------------------------------------------------------------------------

// Unsubscribe removes symbol. Unknown symbols are ignored.
func (f *LiveFeed) Unsubscribe(symbol string) {
	f.mu.Lock()
	if !f.symbols[symbol] {
		f.mu.Unlock()
		return
	}
	delete(f.symbols, symbol)
	conn := f.conn
	f.mu.Unlock()

	if conn != nil {
		f.send(conn, models.MFeedControl{Type: "unsubscribe", Symbol: symbol})
	}
}

// -----------------------------------------------------------------------------

// Symbols returns the registered symbols, sorted.
func (f *LiveFeed) Symbols() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.symbols))
	for s := range f.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------

func (f *LiveFeed) send(conn *websocket.Conn, msg models.MFeedControl) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		f.Logger.Warning("Failed to send %s for %s: %v", msg.Type, msg.Symbol, err)
	}
}

// -----------------------------------------------------------------------------

func (f *LiveFeed) setState(ctx context.Context, state string, err error) {
	f.mu.Lock()
	changed := f.state != state
	f.state = state
	f.mu.Unlock()

	if changed || err != nil {
		f.emit(ctx, models.MFeedEvent{State: state, Err: err})
	}
}

// -----------------------------------------------------------------------------

func (f *LiveFeed) emit(ctx context.Context, ev models.MFeedEvent) {
	if f.out == nil {
		return
	}
	select {
	case f.out <- ev:
	case <-ctx.Done():
	}
}

// -----------------------------------------------------------------------------

func (f *LiveFeed) dialURL() (string, error) {
	u, err := url.Parse(f.URL)
	if err != nil {
		return "", err
	}
	if f.Token != "" {
		q := u.Query()
		q.Set("token", f.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// -----------------------------------------------------------------------------

// runLoop owns the connection lifecycle
func (f *LiveFeed) runLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(f.loopDone)
	defer func() {
		f.mu.Lock()
		f.running = false
		f.conn = nil
		f.state = models.ConnDisconnected
		f.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}

		f.mu.Lock()
		f.attempts++
		attempt := f.attempts
		f.mu.Unlock()

		f.setState(ctx, models.ConnDisconnected, helpers.NewFeedError("connection lost", err))

		if attempt > f.MaxAttempts {
			f.Logger.Error("Live feed halted after %d reconnect attempts: %v", f.MaxAttempts, err)
			select {
			case <-f.rearm:
			default:
			}
			f.setState(ctx, models.ConnHalted, nil)

			select {
			case <-f.rearm:
				f.Logger.Info("Live feed re-armed")
				f.mu.Lock()
				f.attempts = 0
				f.mu.Unlock()
				continue
			case <-ctx.Done():
				return
			}
		}

		delay := time.Duration(attempt) * f.BaseDelay
		f.Logger.Warning("Live feed disconnected (%v). Reconnect %d/%d in %v", err, attempt, f.MaxAttempts, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// -----------------------------------------------------------------------------

// connectAndRead dials, replays subscriptions and reads until failure.
func (f *LiveFeed) connectAndRead(ctx context.Context) error {
	f.setState(ctx, models.ConnConnecting, nil)

	target, err := f.dialURL()
	if err != nil {
		return err
	}

	conn, _, err := f.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.mu.Lock()
	f.conn = conn
	f.attempts = 0
	symbols := make([]string, 0, len(f.symbols))
	for s := range f.symbols {
		symbols = append(symbols, s)
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.conn = nil
		f.mu.Unlock()
	}()

	f.setState(ctx, models.ConnConnected, nil)
	sort.Strings(symbols)
	for _, s := range symbols {
		f.send(conn, models.MFeedControl{Type: "subscribe", Symbol: s})
	}

	// unblock ReadMessage on shutdown
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		f.handleMessage(ctx, raw)
	}
}

// -----------------------------------------------------------------------------

func (f *LiveFeed) handleMessage(ctx context.Context, raw []byte) {
	var msg models.MFeedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		f.Logger.Debug("Ignoring malformed frame: %v", err)
		return
	}

	switch msg.Type {
	case "trade":
		ticks := msg.Data[:0]
		for _, t := range msg.Data {
			if t.Symbol == "" || t.Price <= 0 {
				continue
			}
			ticks = append(ticks, t)
		}
		if len(ticks) > 0 {
			f.emit(ctx, models.MFeedEvent{Ticks: ticks})
		}
	case "ping":
	case "error":
		f.Logger.Warning("Feed error: %s", msg.Msg)
		f.emit(ctx, models.MFeedEvent{Err: helpers.NewFeedError(msg.Msg, nil)})
	default:
		f.Logger.Debug("Ignoring frame type %q", msg.Type)
	}
}

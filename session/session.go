package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/private-content-market/interfaces"
	"go.uber.org/atomic"
)

// DefaultPollInterval matches how often wallets are usually checked for an account switch.
const DefaultPollInterval = time.Second

// ChangeHandler is called with the previous and the new identity after a switch.
type ChangeHandler func(previous, current interfaces.Identity)

// Options configures a Session.
type Options struct {
	PollInterval time.Duration
	Log          *slog.Logger
}

// Session holds the active identity of the process. It is created with the
// identity reported by its source, refreshed on an interval once started and
// stopped with Close.
type Session struct {
	source   Source
	interval time.Duration
	log      *slog.Logger

	current atomic.String
	started atomic.Bool

	mu       sync.Mutex
	handlers []ChangeHandler

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession reads the initial identity from source.
func NewSession(ctx context.Context, source Source, opts Options) (*Session, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	identity, err := source.Identity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read initial identity: %w", err)
	}

	s := &Session{
		source:   source,
		interval: opts.PollInterval,
		log:      opts.Log,
	}
	s.current.Store(identity.Hex())

	s.log.Info("Session started", slog.String("identity", identity.Hex()))
	return s, nil
}

// ActiveIdentity returns the identity the session last observed.
// It fails with interfaces.ErrNoActiveIdentity when none is selected.
func (s *Session) ActiveIdentity(ctx context.Context) (interfaces.Identity, error) {
	identity := common.HexToAddress(s.current.Load())
	if identity == (common.Address{}) {
		return common.Address{}, interfaces.ErrNoActiveIdentity
	}
	return identity, nil
}

// OnChange registers handler for identity switches.
func (s *Session) OnChange(handler ChangeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// Refresh polls the source once and fires change handlers on a switch.
// A failing source keeps the last known identity.
func (s *Session) Refresh(ctx context.Context) error {
	identity, err := s.source.Identity(ctx)
	if err != nil {
		return err
	}

	previous := common.HexToAddress(s.current.Swap(identity.Hex()))
	if previous == identity {
		return nil
	}

	s.log.Info("Active identity changed",
		slog.String("previous", previous.Hex()),
		slog.String("current", identity.Hex()))

	s.mu.Lock()
	handlers := append([]ChangeHandler(nil), s.handlers...)
	s.mu.Unlock()

	for _, handler := range handlers {
		handler(previous, identity)
	}
	return nil
}

// Start begins polling. Calling it again has no effect.
func (s *Session) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pollCtx, pollCancel := context.WithTimeout(ctx, s.interval)
				err := s.Refresh(pollCtx)
				pollCancel()
				if err != nil && !errors.Is(err, context.Canceled) {
					s.log.Warn("Failed to poll identity source", "err", err)
				}
			}
		}
	}()
}

// Close stops polling and waits for the poller to exit.
func (s *Session) Close() {
	if !s.started.CompareAndSwap(true, false) {
		return
	}
	s.cancel()
	<-s.done
	s.log.Debug("Session closed")
}

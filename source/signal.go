package source

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/BaSui01/cancelable/types"
)

// SignalSource cancels the operation with reason Signal when one of the
// configured OS signals arrives. Signals originate on arbitrary threads, so
// delivery goes through the token's thread-safe CancelSync path.
//
// Go's runtime multiplexes signal delivery across subscribers, so "restore
// the previous handler" maps to signal.Stop on the private notification
// channel: other subscribers keep receiving, and the default disposition
// returns once no subscriber remains.
type SignalSource struct {
	attachment

	signals []os.Signal

	relayMu sync.Mutex
	ch      chan os.Signal
	stop    chan struct{}
	done    chan struct{}

	triggered atomic.Bool
	received  atomic.Pointer[os.Signal]
}

// NewSignal creates a signal source. With no signals given it defaults to
// SIGINT and SIGTERM.
func NewSignal(signals ...os.Signal) *SignalSource {
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	return &SignalSource{signals: signals}
}

// Description implements Source.
func (s *SignalSource) Description() string {
	names := make([]string, len(s.signals))
	for i, sig := range s.signals {
		names[i] = sig.String()
	}
	return fmt.Sprintf("signal(%s)", strings.Join(names, ", "))
}

// Activate implements Source. It subscribes to the configured signals and
// starts a relay goroutine that fires the token on delivery.
func (s *SignalSource) Activate(ctx context.Context, op Operation) error {
	if err := s.attach(op); err != nil {
		return err
	}

	s.relayMu.Lock()
	s.ch = make(chan os.Signal, 1)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	signal.Notify(s.ch, s.signals...)
	s.relayMu.Unlock()

	go s.relay(op)
	return nil
}

func (s *SignalSource) relay(op Operation) {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case sig := <-s.ch:
			s.triggered.Store(true)
			s.received.Store(&sig)
			op.Token().CancelSync(types.ReasonSignal,
				fmt.Sprintf("received signal %s", sig))
			return
		}
	}
}

// Deactivate implements Source. The subscription is removed and the relay
// goroutine joined.
func (s *SignalSource) Deactivate(ctx context.Context) error {
	if !s.detach() {
		return nil
	}
	s.relayMu.Lock()
	signal.Stop(s.ch)
	close(s.stop)
	s.relayMu.Unlock()
	<-s.done
	return nil
}

// Triggered implements Source.
func (s *SignalSource) Triggered() bool {
	return s.triggered.Load()
}

// Received returns the signal that fired the source, nil if none did.
func (s *SignalSource) Received() os.Signal {
	if p := s.received.Load(); p != nil {
		return *p
	}
	return nil
}

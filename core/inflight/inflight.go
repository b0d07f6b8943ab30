// Package inflight keeps at most one mutating call per key in flight.
package inflight

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrBusy is returned when the key already has a call in flight.
var ErrBusy = errors.New("a save is already in progress")

// Guard tracks the keys with a call in flight. The zero value is not usable, see NewGuard.
type Guard struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

// NewGuard returns a Guard with no key busy.
func NewGuard() *Guard {
	return &Guard{busy: make(map[string]struct{})}
}

// Acquire marks key busy. The returned release must be called once the call is done.
func (g *Guard) Acquire(key string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.busy[key]; ok {
		return nil, ErrBusy
	}
	g.busy[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.busy, key)
			g.mu.Unlock()
		})
	}, nil
}

// Do runs fn while holding key.
func (g *Guard) Do(key string, fn func() error) error {
	release, err := g.Acquire(key)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrTakenOver is returned by Validate when another client instance has
// overwritten the shared lock token. The losing side is never retried; it is
// unconditionally deauthenticated.
var ErrTakenOver = errors.New("session taken over elsewhere")

// SharedStore is the profile-scoped token store shared by every client
// instance. The file implementation lives in persist.go; tests use an
// in-memory one.
type SharedStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// Broadcaster fans the shared token out to subscribed instances, replacing the
// browser storage-change event with an explicit channel.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan string
	next int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan string)}
}

func (b *Broadcaster) Subscribe() (<-chan string, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan string, 8)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

func (b *Broadcaster) Publish(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- token:
		default:
		}
	}
}

// Lock enforces at most one authenticated instance per profile. The local
// token is instance-scoped; the shared token lives in the SharedStore.
type Lock struct {
	mu         sync.Mutex
	local      string
	shared     SharedStore
	bus        *Broadcaster
	onConflict func(reason string)
	unsub      func()
}

func NewLock(shared SharedStore, bus *Broadcaster) *Lock {
	return &Lock{shared: shared, bus: bus}
}

// OnConflict registers the deauthentication hook and starts watching the
// broadcaster. A published token differing from the local one fires the hook
// within one delivery.
func (l *Lock) OnConflict(fn func(reason string)) {
	l.mu.Lock()
	l.onConflict = fn
	l.mu.Unlock()
	if l.bus == nil {
		return
	}
	ch, cancel := l.bus.Subscribe()
	l.mu.Lock()
	l.unsub = cancel
	l.mu.Unlock()
	go func() {
		for token := range ch {
			l.mu.Lock()
			conflict := l.local != "" && token != l.local
			if conflict {
				l.local = ""
			}
			fn := l.onConflict
			l.mu.Unlock()
			if conflict && fn != nil {
				fn(ErrTakenOver.Error())
			}
		}
	}()
}

// Acquire generates a fresh token and writes it to both stores.
func (l *Lock) Acquire() (string, error) {
	token := uuid.NewString()
	l.mu.Lock()
	l.local = token
	l.mu.Unlock()
	if err := l.shared.Save(token); err != nil {
		return "", err
	}
	if l.bus != nil {
		l.bus.Publish(token)
	}
	return token, nil
}

// Release clears both stores. Used on logout and on 401 deauthentication.
func (l *Lock) Release() error {
	l.mu.Lock()
	owned := l.local != ""
	l.local = ""
	l.mu.Unlock()
	if !owned {
		return nil
	}
	if err := l.shared.Clear(); err != nil {
		return err
	}
	if l.bus != nil {
		l.bus.Publish("")
	}
	return nil
}

// Drop clears only the local side. Used when this instance lost the lock and
// must not disturb the winner's shared token.
func (l *Lock) Drop() {
	l.mu.Lock()
	l.local = ""
	l.mu.Unlock()
}

// Validate compares the local token against the shared one and fires the
// conflict hook on mismatch.
func (l *Lock) Validate() error {
	l.mu.Lock()
	local := l.local
	l.mu.Unlock()
	if local == "" {
		return nil
	}
	shared, err := l.shared.Load()
	if err != nil {
		return err
	}
	if shared == local {
		return nil
	}
	l.mu.Lock()
	l.local = ""
	fn := l.onConflict
	l.mu.Unlock()
	if fn != nil {
		fn(ErrTakenOver.Error())
	}
	return ErrTakenOver
}

// LocalToken returns the instance-scoped token, empty when not held.
func (l *Lock) LocalToken() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.local
}

// AdoptLocal restores the local token from a rehydrated snapshot.
func (l *Lock) AdoptLocal(token string) {
	l.mu.Lock()
	l.local = token
	l.mu.Unlock()
}

func (l *Lock) Close() {
	l.mu.Lock()
	unsub := l.unsub
	l.unsub = nil
	l.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

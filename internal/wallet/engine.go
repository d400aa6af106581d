// Package wallet keeps the two player balances coherent. The backend exposes a
// cash balance and a playable game balance with an explicit transfer step
// between them; the client sweeps opportunistically on login, on app load and
// on wallet-screen transitions rather than assuming a server-side auto-sweep.
package wallet

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lucky/internal/apiclient"
	"lucky/internal/session"

	"github.com/shopspring/decimal"
)

const deauthNotice = "session expired, please log in again"

type Engine struct {
	api    *apiclient.Client
	store  *session.Store
	log    *slog.Logger
	notify func(msg string)
	delay  time.Duration

	// mu serializes reconciliation cycles. Login, load and screen-change
	// triggers can fire together; running their cycles back to back instead
	// of interleaved rules out the double-sweep race.
	mu sync.Mutex

	chmu     sync.Mutex
	channels []apiclient.Channel
}

func New(api *apiclient.Client, store *session.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		api:    api,
		store:  store,
		log:    logger,
		notify: func(string) {},
		delay:  100 * time.Millisecond,
	}
}

// SetNotify installs the non-blocking user notice sink.
func (e *Engine) SetNotify(fn func(msg string)) {
	if fn != nil {
		e.notify = fn
	}
}

// SetSettleDelay overrides the pause between sweep and the follow-up info
// fetch. The pause lets server-side balance updates settle; it is a debounce,
// not a correctness guarantee.
func (e *Engine) SetSettleDelay(d time.Duration) {
	e.delay = d
}

// Reconcile runs one full cycle: warm the channel cache, fetch player info on
// first contact, sweep any main balance into the game balance, then install
// the reconciled view. Repeating the cycle with a zero main balance is a
// no-op fetch.
func (e *Engine) Reconcile(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.store.Identity()
	if !id.Authenticated() {
		return nil
	}
	token := id.Token

	if err := e.warmChannels(ctx, token); err != nil {
		if apiclient.IsUnauthorized(err) {
			e.store.Deauth(deauthNotice)
			return err
		}
		// channel list is ancillary; report and keep reconciling
		e.notify(err.Error())
	}
	if !e.alive(token) {
		return nil
	}

	info := id.UserInfo
	if info == nil {
		fresh, err := e.api.PlayerInfo(ctx, token)
		if err != nil {
			return e.fail(err)
		}
		if !e.alive(token) {
			return nil
		}
		e.store.SetUserInfo(fresh)
		info = fresh
	}

	if info.Balance.Sign() <= 0 {
		return e.refresh(ctx, token)
	}
	return e.sweep(ctx, token, info)
}

// refresh fetches the authoritative view and installs it verbatim.
func (e *Engine) refresh(ctx context.Context, token string) error {
	fresh, err := e.api.PlayerInfo(ctx, token)
	if err != nil {
		return e.fail(err)
	}
	if !e.alive(token) {
		return nil
	}
	e.store.SetUserInfo(fresh)
	return nil
}

// sweep transfers the full main balance to the game balance, waits for the
// settle delay, then fetches and installs the reconciled view.
func (e *Engine) sweep(ctx context.Context, token string, info *session.UserInfo) error {
	swept := info.Balance
	_, sweepErr := e.api.TransferToGame(ctx, token, swept)
	if sweepErr != nil {
		if apiclient.IsUnauthorized(sweepErr) {
			e.store.Deauth(deauthNotice)
			return sweepErr
		}
		e.notify(sweepErr.Error())
	}
	if !e.alive(token) {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.delay):
	}
	if !e.alive(token) {
		return nil
	}

	fresh, err := e.api.PlayerInfo(ctx, token)
	if err != nil {
		return e.fail(err)
	}
	if !e.alive(token) {
		return nil
	}
	if sweepErr != nil {
		// the transfer did not happen; trust the fetched view as-is
		e.store.SetUserInfo(fresh)
		return sweepErr
	}
	next := *fresh
	next.Balance = decimal.Zero
	next.GameBalance = info.GameBalance.Add(swept)
	e.store.SetUserInfo(&next)
	return nil
}

// Channels returns the session-cached deposit channel list, fetching it on
// first use. The list is refreshed wholesale, never patched.
func (e *Engine) Channels(ctx context.Context) ([]apiclient.Channel, error) {
	token := e.store.Token()
	if token == "" {
		return nil, nil
	}
	if err := e.warmChannels(ctx, token); err != nil {
		if apiclient.IsUnauthorized(err) {
			e.store.Deauth(deauthNotice)
		}
		return nil, err
	}
	e.chmu.Lock()
	defer e.chmu.Unlock()
	return append([]apiclient.Channel(nil), e.channels...), nil
}

// RefreshChannels drops the cache and re-fetches.
func (e *Engine) RefreshChannels(ctx context.Context) ([]apiclient.Channel, error) {
	e.chmu.Lock()
	e.channels = nil
	e.chmu.Unlock()
	return e.Channels(ctx)
}

func (e *Engine) warmChannels(ctx context.Context, token string) error {
	e.chmu.Lock()
	cached := e.channels != nil
	e.chmu.Unlock()
	if cached {
		return nil
	}
	chs, err := e.api.DepositChannels(ctx, token)
	if err != nil {
		return err
	}
	e.chmu.Lock()
	if chs == nil {
		chs = []apiclient.Channel{}
	}
	e.channels = chs
	e.chmu.Unlock()
	return nil
}

// alive reports whether the identity that started the cycle is still current.
// Any stage observing a stale or missing identity aborts the rest of the
// cycle without error.
func (e *Engine) alive(token string) bool {
	id := e.store.Identity()
	return id.Authenticated() && id.Token == token
}

func (e *Engine) fail(err error) error {
	if apiclient.IsUnauthorized(err) {
		e.store.Deauth(deauthNotice)
		return err
	}
	e.notify(err.Error())
	return err
}

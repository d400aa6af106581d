// Package catalog accumulates the game list page by page, one cursor per
// (category, vendor) pair, deduplicating by game id. Filtering happens
// client-side over the whole accumulated set.
package catalog

import (
	"context"
	"strings"
	"sync"

	"lucky/internal/apiclient"
	"lucky/internal/session"
)

// FillThreshold is how many fresh filter-matching games a fill pass tries to
// produce before it stops pulling pages.
const FillThreshold = 15

type pageKey struct {
	category string
	vendor   string
}

type cursor struct {
	current int
	last    int
}

type Pager struct {
	api      *apiclient.Client
	store    *session.Store
	isMobile bool

	mu      sync.Mutex
	cursors map[pageKey]*cursor
	games   map[int64]apiclient.Game
	order   []int64
}

func NewPager(api *apiclient.Client, store *session.Store, isMobile bool) *Pager {
	return &Pager{
		api:      api,
		store:    store,
		isMobile: isMobile,
		cursors:  make(map[pageKey]*cursor),
		games:    make(map[int64]apiclient.Game),
	}
}

// LoadPage fetches the next page for the key and merges it into the catalog.
// Once the cursor reaches the last page it returns an empty set without a
// network call, as the completion signal.
func (p *Pager) LoadPage(ctx context.Context, category, vendor string) ([]apiclient.Game, error) {
	token := p.store.Token()
	if token == "" {
		return nil, nil
	}
	k := pageKey{category: category, vendor: vendor}

	p.mu.Lock()
	cur := p.cursors[k]
	if cur != nil && cur.current >= cur.last {
		p.mu.Unlock()
		return []apiclient.Game{}, nil
	}
	page := 1
	if cur != nil {
		page = cur.current + 1
	}
	p.mu.Unlock()

	resp, err := p.api.GameList(ctx, token, page, category, vendor, p.isMobile)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			p.store.Deauth("session expired, please log in again")
		}
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cur = p.cursors[k]; cur == nil {
		cur = &cursor{}
		p.cursors[k] = cur
	}
	cur.current = page
	cur.last = resp.LastPage
	for _, g := range resp.Data {
		if _, seen := p.games[g.ID]; !seen {
			p.order = append(p.order, g.ID)
		}
		p.games[g.ID] = g
	}
	return resp.Data, nil
}

// Done reports whether the key's cursor is exhausted.
func (p *Pager) Done(category, vendor string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.cursors[pageKey{category: category, vendor: vendor}]
	return cur != nil && cur.current >= cur.last
}

// Games returns the accumulated catalog in first-seen order.
func (p *Pager) Games() []apiclient.Game {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]apiclient.Game, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.games[id])
	}
	return out
}

// Filter matches the accumulated catalog by name, ignoring case and
// whitespace on both sides.
func (p *Pager) Filter(query string) []apiclient.Game {
	q := normalize(query)
	if q == "" {
		return p.Games()
	}
	var out []apiclient.Game
	for _, g := range p.Games() {
		if strings.Contains(normalize(g.Name), q) {
			out = append(out, g)
		}
	}
	return out
}

// Fill keeps pulling pages while the intersection signal holds and fewer than
// FillThreshold fresh query-matching games have arrived. This is the "keep
// pulling until the visible filtered set is usefully full" policy, not one
// page per scroll.
func (p *Pager) Fill(ctx context.Context, category, vendor, query string, intersecting func() bool) (int, error) {
	fresh := 0
	for intersecting() && fresh < FillThreshold {
		if p.Done(category, vendor) {
			break
		}
		batch, err := p.LoadPage(ctx, category, vendor)
		if err != nil {
			return fresh, err
		}
		if len(batch) == 0 {
			break
		}
		q := normalize(query)
		for _, g := range batch {
			if q == "" || strings.Contains(normalize(g.Name), q) {
				fresh++
			}
		}
	}
	return fresh, nil
}

// Vendors returns the vendor codes for a category.
func (p *Pager) Vendors(ctx context.Context, category string) ([]string, error) {
	token := p.store.Token()
	if token == "" {
		return nil, nil
	}
	vendors, err := p.api.GameVendors(ctx, token, category, p.isMobile)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			p.store.Deauth("session expired, please log in again")
		}
		return nil, err
	}
	return vendors, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

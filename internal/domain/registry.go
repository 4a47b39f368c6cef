package domain

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/equilibre/internal/modules/orderbook"
)

// Registry is the resolve table for assets, anchors, and balances. Every
// lookup returns the same instance for the same identity, so books and
// watchers attach exactly once.
type Registry struct {
	mu sync.RWMutex

	native   *Asset
	assets   map[string]*Asset
	anchors  map[string]*Anchor
	balances map[string]*Balance
	aliases  map[string]string

	// marketDepth is applied to every book the registry creates; 0 keeps
	// the book default.
	marketDepth float64

	log zerolog.Logger
}

// NewRegistry creates a registry whose native books are quoted against the
// venue's base asset (nativeCode). aliases maps issuer addresses to display
// names and may be nil.
func NewRegistry(nativeCode string, aliases map[string]string, log zerolog.Logger) *Registry {
	r := &Registry{
		assets:   map[string]*Asset{},
		anchors:  map[string]*Anchor{},
		balances: map[string]*Balance{},
		aliases:  aliases,
		log:      log.With().Str("component", "registry").Logger(),
	}
	// The venue base asset is always globally priced: every native ladder
	// needs its reference-currency rate.
	r.native = NewAsset(nativeCode, TypeCrypto, true, log)
	r.assets[nativeCode] = r.native
	return r
}

// Native returns the venue's base asset.
func (r *Registry) Native() *Asset { return r.native }

// SetMarketDepth sets the depth-based pricing threshold on every book the
// registry has created and every book it will create.
func (r *Registry) SetMarketDepth(depth float64) {
	r.mu.Lock()
	r.marketDepth = depth
	assets := make([]*Asset, 0, len(r.assets))
	for _, a := range r.assets {
		assets = append(assets, a)
	}
	balances := make([]*Balance, 0, len(r.balances))
	for _, b := range r.balances {
		balances = append(balances, b)
	}
	r.mu.Unlock()

	for _, a := range assets {
		a.Book.SetMarketDepth(depth)
	}
	for _, b := range balances {
		if b.Book != nil {
			b.Book.SetMarketDepth(depth)
		}
	}
}

// ResolveAsset returns the asset registered under code, creating it with the
// given type on first sight.
func (r *Registry) ResolveAsset(code string, typ AssetType, useGlobalPrice bool) *Asset {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.assets[code]; ok {
		return a
	}
	a := NewAsset(code, typ, useGlobalPrice, r.log)
	a.Book.SetMarketDepth(r.marketDepth)
	r.assets[code] = a
	r.log.Debug().Str("asset", code).Str("type", string(typ)).Msg("Registered asset")
	return a
}

// ResolveAnchor returns the anchor registered under address, creating it on
// first sight with any known alias applied.
func (r *Registry) ResolveAnchor(address string) *Anchor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.anchors[address]; ok {
		return a
	}
	a := &Anchor{Address: address, Alias: r.aliases[address]}
	r.anchors[address] = a
	return a
}

// ResolveBalance returns the balance of asset issued by anchor, creating it
// on first sight. A new balance gets a native book against the venue base
// asset, wired into the asset's aggregated ladder.
func (r *Registry) ResolveBalance(asset *Asset, anchor *Anchor) *Balance {
	key := asset.Code() + ":" + anchor.Address

	r.mu.Lock()
	if b, ok := r.balances[key]; ok {
		r.mu.Unlock()
		return b
	}
	b := &Balance{asset: asset, anchor: anchor}
	if asset != r.native {
		b.Book = orderbook.NewNative(asset, r.native, b, r.log)
		b.Book.SetMarketDepth(r.marketDepth)
	}
	r.balances[key] = b
	r.mu.Unlock()

	asset.AddBalance(b)
	return b
}

// Asset returns the asset registered under code, or nil.
func (r *Registry) Asset(code string) *Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.assets[code]
}

// Assets returns every registered asset, sorted by code.
func (r *Registry) Assets() []*Asset {
	r.mu.RLock()
	out := make([]*Asset, 0, len(r.assets))
	for _, a := range r.assets {
		out = append(out, a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code() < out[j].Code() })
	return out
}

// AssetsOfType returns every registered asset of the given pricing class,
// sorted by code.
func (r *Registry) AssetsOfType(typ AssetType) []*Asset {
	all := r.Assets()
	out := all[:0:0]
	for _, a := range all {
		if a.Type() == typ {
			out = append(out, a)
		}
	}
	return out
}

// Balances returns every registered balance.
func (r *Registry) Balances() []*Balance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Balance, 0, len(r.balances))
	for _, b := range r.balances {
		out = append(out, b)
	}
	return out
}

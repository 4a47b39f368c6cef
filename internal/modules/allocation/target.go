// Package allocation models the hierarchical allocation tree and resolves
// it top-down into absolute target values, amounts, and deltas per asset.
package allocation

import (
	"github.com/aristath/equilibre/internal/domain"
	"github.com/aristath/equilibre/internal/modules/order"
	"github.com/aristath/equilibre/internal/modules/pricing"
)

// Mode declares how a target's share of its parent is determined.
type Mode string

const (
	// ModeWeight sizes the target relative to its sized siblings.
	ModeWeight Mode = "weight"
	// ModePercentage fixes the target at a percentage of the parent.
	ModePercentage Mode = "percentage"
	// ModeAmount fixes the target at an asset amount.
	ModeAmount Mode = "amount"
	// ModeIgnore keeps the node in the tree but allocates nothing to it.
	ModeIgnore Mode = "ignore"
	// ModeSkip freezes the target at the asset's currently held value.
	ModeSkip Mode = "skip"
	// ModeRemove marks the node for pruning before the next resolution.
	ModeRemove Mode = "remove"
)

// Target is one node of the allocation tree: either a container grouping
// sub-allocations or a leaf bound to an asset.
type Target struct {
	name  string
	asset *domain.Asset

	mode    Mode
	size    float64
	hasSize bool

	// resolved per pass
	goal     float64
	value    float64
	share    float64
	resolved bool

	children []*Target
	parent   *Target

	order    *order.Order
	modified bool

	// root only
	errors []string
}

// NewRoot creates the tree root. The root owns the pass-scoped error list.
func NewRoot(name string) *Target {
	return &Target{name: name, mode: ModeWeight}
}

// NewGroup creates a container node under parent.
func NewGroup(parent *Target, name string) *Target {
	t := &Target{name: name, mode: ModeWeight, parent: parent}
	parent.children = append(parent.children, t)
	return t
}

// NewAssetTarget creates a leaf bound to asset under parent.
func NewAssetTarget(parent *Target, asset *domain.Asset) *Target {
	t := &Target{name: asset.Code(), asset: asset, mode: ModeWeight, parent: parent}
	parent.children = append(parent.children, t)
	return t
}

// Name returns the node's display name (the asset code for leaves).
func (t *Target) Name() string { return t.name }

// Asset returns the bound asset, nil for containers.
func (t *Target) Asset() *domain.Asset { return t.asset }

// Mode returns the node's sizing mode.
func (t *Target) Mode() Mode { return t.mode }

// SetMode changes the node's sizing mode and marks the tree modified.
func (t *Target) SetMode(mode Mode) {
	if t.mode == mode {
		return
	}
	t.mode = mode
	t.markModified()
}

// Size returns the node's declared magnitude and whether one was declared.
// Its meaning depends on the mode: a sibling weight, a percentage of the
// parent, or an asset amount.
func (t *Target) Size() (float64, bool) { return t.size, t.hasSize }

// SetSize declares the node's magnitude.
func (t *Target) SetSize(size float64) {
	if t.hasSize && t.size == size {
		return
	}
	t.size = size
	t.hasSize = true
	t.markModified()
}

// ClearSize removes the declared magnitude, returning the node to the
// unsized pool.
func (t *Target) ClearSize() {
	if !t.hasSize {
		return
	}
	t.hasSize = false
	t.size = 0
	t.markModified()
}

// Parent returns the containing node, nil for the root.
func (t *Target) Parent() *Target { return t.parent }

// Root returns the tree root.
func (t *Target) Root() *Target {
	n := t
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// Children returns the node's ordered sub-allocations.
func (t *Target) Children() []*Target { return t.children }

// Goal returns the node's resolved percentage of its parent's value.
func (t *Target) Goal() float64 { return t.goal }

// Value returns the node's resolved target value in reference currency.
func (t *Target) Value() float64 { return t.value }

// Share returns the node's resolved target value as a fraction of the
// portfolio total.
func (t *Target) Share() float64 { return t.share }

// ResolvedAmount returns the resolved target amount (value over price) and
// whether the node has been resolved this pass. Container nodes and
// unpriceable assets report zero.
func (t *Target) ResolvedAmount() (float64, bool) {
	if !t.resolved || t.asset == nil {
		return 0, t.resolved
	}
	price := t.asset.Price()
	if price == 0 {
		return 0, t.resolved
	}
	return pricing.Round7(t.value / price), t.resolved
}

// AmountDelta returns resolved amount minus currently held amount. Positive
// means buy.
func (t *Target) AmountDelta() float64 {
	if t.asset == nil {
		return 0
	}
	amount, ok := t.ResolvedAmount()
	if !ok {
		return 0
	}
	return pricing.Round7(amount - t.asset.Amount())
}

// AmountDenominated reports whether the node's size is an asset amount.
func (t *Target) AmountDenominated() bool { return t.mode == ModeAmount }

// Order returns the order built to realize this node's delta, nil when none
// has been built.
func (t *Target) Order() *order.Order { return t.order }

// SetOrder attaches the order realizing this node's delta.
func (t *Target) SetOrder(o *order.Order) { t.order = o }

// Modified reports whether the subtree changed since the last snapshot.
func (t *Target) Modified() bool {
	if t.modified {
		return true
	}
	for _, c := range t.children {
		if c.Modified() {
			return true
		}
	}
	return false
}

// ClearModified resets the modified flag over the whole subtree, after a
// snapshot was persisted.
func (t *Target) ClearModified() {
	t.modified = false
	for _, c := range t.children {
		c.ClearModified()
	}
}

func (t *Target) markModified() { t.modified = true }

// Errors returns the advisory errors recorded on the tree root during the
// last resolution pass.
func (t *Target) Errors() []string {
	root := t.Root()
	out := make([]string, len(root.errors))
	copy(out, root.errors)
	return out
}

func (t *Target) addError(msg string) {
	root := t.Root()
	root.errors = append(root.errors, msg)
}

func (t *Target) resetErrors() {
	t.Root().errors = nil
}

// Prune removes every child marked with ModeRemove, recursively. Removed
// nodes drop out of the tree entirely along with their orders.
func (t *Target) Prune() {
	kept := t.children[:0]
	for _, c := range t.children {
		if c.mode == ModeRemove {
			t.modified = true
			continue
		}
		c.Prune()
		kept = append(kept, c)
	}
	t.children = kept
}

// Leaves returns every asset-bound node of the subtree in tree order.
func (t *Target) Leaves() []*Target {
	var out []*Target
	t.walk(func(n *Target) {
		if n.asset != nil {
			out = append(out, n)
		}
	})
	return out
}

func (t *Target) walk(fn func(*Target)) {
	fn(t)
	for _, c := range t.children {
		c.walk(fn)
	}
}

// Find returns the subtree node with the given name, or nil.
func (t *Target) Find(name string) *Target {
	var found *Target
	t.walk(func(n *Target) {
		if found == nil && n.name == name {
			found = n
		}
	})
	return found
}

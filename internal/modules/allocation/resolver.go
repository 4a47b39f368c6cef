package allocation

import (
	"fmt"

	"github.com/rs/zerolog"
)

// DistributeFunc assigns goals to the unsized children of a container, given
// the leftover percentage after sized and fixed siblings took theirs.
type DistributeFunc func(leftover float64, remaining []*Target)

// distributeEqual divides the leftover evenly.
func distributeEqual(leftover float64, remaining []*Target) {
	each := leftover / float64(len(remaining))
	for _, c := range remaining {
		c.goal = each
	}
}

// Resolver walks the allocation tree top-down, turning an available value
// into per-node goals, target values, and amounts.
type Resolver struct {
	distributions map[Mode]DistributeFunc
	log           zerolog.Logger
}

// NewResolver creates a resolver with the equal distribution method.
func NewResolver(log zerolog.Logger) *Resolver {
	return &Resolver{
		distributions: map[Mode]DistributeFunc{},
		log:           log.With().Str("component", "resolver").Logger(),
	}
}

// RegisterDistribution installs a distribution method for containers of the
// given mode, replacing the default equal split.
func (r *Resolver) RegisterDistribution(mode Mode, fn DistributeFunc) {
	r.distributions[mode] = fn
}

// Apply resolves the tree against availableValue. Nodes marked for removal
// are pruned first and the root's advisory error list is reset. A negative
// available value at any node aborts the pass with an error; advisory
// overflow errors are recorded on the root and resolution continues.
func (r *Resolver) Apply(root *Target, availableValue float64) error {
	root.resetErrors()
	root.Prune()
	root.goal = 100

	if err := r.apply(root, availableValue, availableValue); err != nil {
		return err
	}

	r.log.Debug().
		Float64("value", availableValue).
		Int("errors", len(root.Errors())).
		Msg("Allocation resolved")
	return nil
}

func (r *Resolver) apply(node *Target, available, total float64) error {
	if available < 0 {
		return fmt.Errorf("allocation impossible: %s resolves to negative value %.7f", node.name, available)
	}

	node.value = available
	node.resolved = true
	node.share = 0
	if total > 0 {
		node.share = available / total
	}

	if len(node.children) == 0 {
		return nil
	}

	used := 0.0
	var remaining []*Target
	for _, child := range node.children {
		switch {
		case child.mode == ModeIgnore:
			child.goal = 0
		case child.mode == ModeSkip || child.mode == ModeAmount:
			child.goal = r.fixedGoal(child, available)
			if child.goal > 100 {
				node.addError(child.name + " order over portfolio total")
			}
			used += child.goal
		case child.hasSize:
			child.goal = child.size
			used += child.goal
		default:
			remaining = append(remaining, child)
		}
	}

	if used > 100 || (used != 100 && len(remaining) == 0) {
		// Force goals to sum to exactly 100: rescale every sized and fixed
		// child proportionally, zero out the unsized ones.
		if used > 100 {
			node.addError(node.name + " allocation exceeds available value")
		}
		for _, child := range node.children {
			if child.mode == ModeIgnore {
				continue
			}
			if used != 0 {
				child.goal = child.goal * 100 / used
			}
		}
		for _, child := range remaining {
			child.goal = 0
		}
	} else if len(remaining) > 0 {
		distribute := r.distributions[node.mode]
		if distribute == nil {
			distribute = distributeEqual
		}
		distribute(100-used, remaining)
	}

	for _, child := range node.children {
		if err := r.apply(child, available*child.goal/100, total); err != nil {
			return err
		}
	}
	return nil
}

// fixedGoal computes the percentage a skip or amount child takes off the
// top: its declared size converted to a value, or the asset's currently held
// value when no size was declared.
func (r *Resolver) fixedGoal(child *Target, available float64) float64 {
	if available <= 0 {
		return 0
	}

	var value float64
	switch {
	case child.mode == ModeAmount && child.hasSize && child.asset != nil:
		value = child.size * child.asset.Price()
	case child.hasSize:
		value = child.size
	case child.asset != nil:
		value = child.asset.Value()
	}

	return 100 * value / available
}

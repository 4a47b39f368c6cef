package allocation

import (
	"github.com/aristath/equilibre/internal/domain"
)

// Node is the serializable shape of one allocation tree node: mode and size
// only, since everything else is derived at resolution time.
type Node struct {
	Name     string   `msgpack:"name,omitempty" json:"name,omitempty"`
	Asset    string   `msgpack:"asset,omitempty" json:"asset,omitempty"`
	Mode     Mode     `msgpack:"mode" json:"mode"`
	Size     *float64 `msgpack:"size,omitempty" json:"size,omitempty"`
	Children []Node   `msgpack:"children,omitempty" json:"children,omitempty"`
}

// Snapshot captures the subtree's declared allocation.
func (t *Target) Snapshot() Node {
	n := Node{Mode: t.mode}
	if t.asset != nil {
		n.Asset = t.asset.Code()
	} else {
		n.Name = t.name
	}
	if t.hasSize {
		size := t.size
		n.Size = &size
	}
	for _, c := range t.children {
		n.Children = append(n.Children, c.Snapshot())
	}
	return n
}

// RestoreTree rebuilds an allocation tree from a snapshot. Asset leaves are
// resolved through the registry; assets not yet seen by the portfolio are
// registered untyped and pick up their class when the account loads.
func RestoreTree(n Node, registry *domain.Registry) *Target {
	root := NewRoot(n.Name)
	root.mode = n.Mode
	if n.Size != nil {
		root.size = *n.Size
		root.hasSize = true
	}
	for _, c := range n.Children {
		restoreInto(root, c, registry)
	}
	return root
}

func restoreInto(parent *Target, n Node, registry *domain.Registry) {
	var t *Target
	if n.Asset != "" {
		asset := registry.Asset(n.Asset)
		if asset == nil {
			asset = registry.ResolveAsset(n.Asset, domain.TypeUnknown, false)
		}
		t = NewAssetTarget(parent, asset)
	} else {
		t = NewGroup(parent, n.Name)
	}
	t.mode = n.Mode
	if n.Size != nil {
		t.size = *n.Size
		t.hasSize = true
	}
	for _, c := range n.Children {
		restoreInto(t, c, registry)
	}
}

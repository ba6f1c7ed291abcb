package trayicon

import (
	"fmt"
	"maps"
	"sync"
)

// LayoutFetcher returns the whole layout below parentID and the revision it
// belongs to.
type LayoutFetcher func(parentID int32) (uint32, *LayoutNode, error)

// Mirror is a copy of a menu layout kept up to date by the signals of the
// menu. Hosts use it to render a menu without fetching the whole layout on
// every change.
type Mirror struct {
	fetch LayoutFetcher

	mu       sync.RWMutex
	revision uint32
	root     *LayoutNode
}

// NewMirror fetches the whole layout and returns its mirror.
func NewMirror(fetch LayoutFetcher) (*Mirror, error) {
	revision, root, err := fetch(0)
	if err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}

	return &Mirror{
		fetch:    fetch,
		revision: revision,
		root:     root,
	}, nil
}

// Revision returns the revision of the last fetched layout.
func (m *Mirror) Revision() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.revision
}

// Root returns a copy of the mirrored layout.
func (m *Mirror) Root() *LayoutNode {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return cloneLayout(m.root)
}

// LayoutUpdated fetches the layout below parentID again and replaces the
// mirrored subtree. The whole layout is fetched if parentID is unknown.
func (m *Mirror) LayoutUpdated(revision uint32, parentID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.root.Find(parentID) == nil {
		parentID = 0
	}

	fetched, node, err := m.fetch(parentID)
	if err != nil {
		return fmt.Errorf("mirror: %w", err)
	}

	if parentID == 0 {
		m.root = node
	} else {
		target := m.root.Find(parentID)
		target.Properties = node.Properties
		target.Children = node.Children
	}

	m.revision = max(revision, fetched)

	return nil
}

// PropertiesUpdated applies updated and removed properties to the mirrored
// nodes. Unknown nodes are ignored.
func (m *Mirror) PropertiesUpdated(updated []*UpdatedProperties, removed []*RemovedProperties) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, up := range updated {
		node := m.root.Find(up.NodeID)
		if node == nil {
			continue
		}

		if node.Properties == nil {
			node.Properties = make(map[string]any, len(up.Properties))
		}

		maps.Copy(node.Properties, up.Properties)
	}

	for _, rm := range removed {
		node := m.root.Find(rm.NodeID)
		if node == nil {
			continue
		}

		for _, key := range rm.Properties {
			delete(node.Properties, key)
		}
	}
}

func cloneLayout(node *LayoutNode) *LayoutNode {
	if node == nil {
		return nil
	}

	clone := &LayoutNode{
		ID:         node.ID,
		Properties: maps.Clone(node.Properties),
		Children:   make([]*LayoutNode, 0, len(node.Children)),
	}

	for _, child := range node.Children {
		clone.Children = append(clone.Children, cloneLayout(child))
	}

	return clone
}

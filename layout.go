package trayicon

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// LayoutNode is a node of a dbusmenu layout, as returned by GetLayout.
type LayoutNode struct {
	ID         int32
	Properties map[string]any
	Children   []*LayoutNode
}

// NewLayoutNode decodes a layout node from its D-Bus representation
//
//	(ia{sv}av)
//
// Children that cannot be decoded are skipped.
func NewLayoutNode(data any) (*LayoutNode, error) {
	arr, ok := data.([]any)
	if !ok || len(arr) != 3 {
		return nil, fmt.Errorf("menu node: invalid format")
	}

	id, ok := arr[0].(int32)
	if !ok {
		return nil, fmt.Errorf("menu node: invalid id")
	}

	props, ok := arr[1].(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("menu node: invalid props")
	}

	children, ok := arr[2].([]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("menu node: invalid children")
	}

	root := &LayoutNode{
		ID:         id,
		Properties: variantsToValues(props),
		Children:   make([]*LayoutNode, 0, len(children)),
	}

	for _, child := range children {
		childNode, err := NewLayoutNode(child.Value())
		if err != nil {
			continue
		}

		root.Children = append(root.Children, childNode)
	}

	return root, nil
}

// Find returns the node with the given id from the subtree rooted at n, or nil
// if there is no such node.
func (n *LayoutNode) Find(id int32) *LayoutNode {
	if n == nil {
		return nil
	}

	if n.ID == id {
		return n
	}

	for _, child := range n.Children {
		if found := child.Find(id); found != nil {
			return found
		}
	}

	return nil
}

// Walk calls fn for every node of the subtree rooted at n, parents first.
func (n *LayoutNode) Walk(fn func(node *LayoutNode, depth int)) {
	n.walk(fn, 0)
}

func (n *LayoutNode) walk(fn func(*LayoutNode, int), depth int) {
	if n == nil {
		return
	}

	fn(n, depth)

	for _, child := range n.Children {
		child.walk(fn, depth+1)
	}
}

// layoutStruct is the wire form of [LayoutNode].
type layoutStruct struct {
	ID         int32
	Properties map[string]dbus.Variant
	Children   []dbus.Variant
}

func (n *LayoutNode) dbusValue() layoutStruct {
	children := make([]dbus.Variant, 0, len(n.Children))

	for _, child := range n.Children {
		children = append(children, dbus.MakeVariant(child.dbusValue()))
	}

	return layoutStruct{
		ID:         n.ID,
		Properties: valuesToVariants(n.Properties),
		Children:   children,
	}
}

// UpdatedProperties represents updated properties of a specific layout node.
type UpdatedProperties struct {
	// ID of the layout node.
	NodeID int32

	// Updated properties.
	Properties map[string]any
}

// RemovedProperties represents removed properties of a specific layout node.
type RemovedProperties struct {
	// ID of the layout node.
	NodeID int32

	// Removed properties.
	Properties []string
}

// updatedStruct is the wire form of [UpdatedProperties], (ia{sv}).
type updatedStruct struct {
	ID         int32
	Properties map[string]dbus.Variant
}

// removedStruct is the wire form of [RemovedProperties], (ias).
type removedStruct struct {
	ID         int32
	Properties []string
}

func updatedToDBus(updated []*UpdatedProperties) []updatedStruct {
	out := make([]updatedStruct, 0, len(updated))

	for _, up := range updated {
		out = append(out, updatedStruct{
			ID:         up.NodeID,
			Properties: valuesToVariants(up.Properties),
		})
	}

	return out
}

func removedToDBus(removed []*RemovedProperties) []removedStruct {
	out := make([]removedStruct, 0, len(removed))

	for _, rp := range removed {
		out = append(out, removedStruct{
			ID:         rp.NodeID,
			Properties: rp.Properties,
		})
	}

	return out
}

// getUpdatedProperties retrieves updated properties from the first argument of
// the com.canonical.dbusmenu.ItemsPropertiesUpdated signal.
func getUpdatedProperties(data any) ([]*UpdatedProperties, error) {
	items, ok := data.([][]any)
	if !ok {
		return nil, fmt.Errorf("invalid argument format")
	}

	updatedProperties := make([]*UpdatedProperties, 0, len(items))

	for _, item := range items {
		if len(item) != 2 {
			continue
		}

		nodeID, ok := item[0].(int32)
		if !ok {
			continue
		}

		props, ok := item[1].(map[string]dbus.Variant)
		if !ok {
			continue
		}

		updatedProperties = append(updatedProperties, &UpdatedProperties{
			NodeID:     nodeID,
			Properties: variantsToValues(props),
		})
	}

	return updatedProperties, nil
}

// getRemovedProperties retrieves removed properties from the second argument
// of the com.canonical.dbusmenu.ItemsPropertiesUpdated signal.
func getRemovedProperties(data any) ([]*RemovedProperties, error) {
	items, ok := data.([][]any)
	if !ok {
		return nil, fmt.Errorf("invalid argument format")
	}

	removedProperties := make([]*RemovedProperties, 0, len(items))

	for _, item := range items {
		if len(item) != 2 {
			continue
		}

		nodeID, ok := item[0].(int32)
		if !ok {
			continue
		}

		props, ok := item[1].([]string)
		if !ok {
			continue
		}

		removedProperties = append(removedProperties, &RemovedProperties{
			NodeID:     nodeID,
			Properties: props,
		})
	}

	return removedProperties, nil
}

func variantsToValues(variants map[string]dbus.Variant) map[string]any {
	values := make(map[string]any, len(variants))

	for key, variant := range variants {
		values[key] = variant.Value()
	}

	return values
}

func valuesToVariants(values map[string]any) map[string]dbus.Variant {
	variants := make(map[string]dbus.Variant, len(values))

	for key, value := range values {
		variants[key] = dbus.MakeVariant(value)
	}

	return variants
}

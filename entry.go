package trayicon

import "slices"

// Properties of dbusmenu layout nodes.
const (
	PropertyLabel           = "label"
	PropertyType            = "type"
	PropertyToggleType      = "toggle-type"
	PropertyToggleState     = "toggle-state"
	PropertyChildrenDisplay = "children-display"
)

// Values of dbusmenu layout node properties.
const (
	typeSeparator          = "separator"
	toggleTypeCheckmark    = "checkmark"
	childrenDisplaySubmenu = "submenu"
)

// menuEntry is a flattened menu node. Entries are addressed by their position
// in the table, position 0 being the root.
type menuEntry[T any] struct {
	props     map[string]any
	children  []int32
	signal    T
	hasSignal bool
}

// properties returns properties of the entry whose names are in requested.
// All properties are returned if requested is empty.
func (e *menuEntry[T]) properties(requested []string) map[string]any {
	props := make(map[string]any, len(e.props))

	for key, value := range e.props {
		if len(requested) == 0 || slices.Contains(requested, key) {
			props[key] = value
		}
	}

	return props
}

// buildEntries flattens menu into a table of entries.
//
// Entries are laid out breadth-first: the root comes first, and the children
// of every node occupy a contiguous range of indices greater than the index of
// their parent.
func buildEntries[T any](menu *Menu[T]) []menuEntry[T] {
	var items []MenuItem[T]
	if menu != nil {
		items = menu.Items
	}

	entries := make([]menuEntry[T], 0, 1+menu.Len())
	entries = append(entries, menuEntry[T]{
		props: map[string]any{
			PropertyChildrenDisplay: childrenDisplaySubmenu,
		},
		children: indexRange(1, 1+len(items)),
	})

	queue := slices.Clone(items)

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		entry := menuEntry[T]{}

		switch item.Kind {
		case KindSeparator:
			entry.props = map[string]any{
				PropertyType: typeSeparator,
			}

		case KindButton:
			entry.props = map[string]any{
				PropertyLabel: item.Label,
			}

			if item.Checkable {
				entry.props[PropertyToggleType] = toggleTypeCheckmark
				entry.props[PropertyToggleState] = toggleState(item.Checked)
			}

			entry.signal = item.Signal
			entry.hasSignal = true

		case KindSubmenu:
			entry.props = map[string]any{
				PropertyLabel:           item.Label,
				PropertyChildrenDisplay: childrenDisplaySubmenu,
			}

			// Children are placed after every item that is already queued.
			start := 1 + len(entries) + len(queue)
			queue = append(queue, item.Children...)
			end := 1 + len(entries) + len(queue)

			entry.children = indexRange(start, end)
		}

		entries = append(entries, entry)
	}

	return entries
}

func toggleState(checked bool) int32 {
	if checked {
		return 1
	}

	return 0
}

func indexRange(start, end int) []int32 {
	indices := make([]int32, 0, end-start)

	for i := start; i < end; i++ {
		indices = append(indices, int32(i))
	}

	return indices
}

// collectLayout returns layout nodes for ids, descending depth levels into
// their children. Negative depth means no limit.
func collectLayout[T any](entries []menuEntry[T], ids []int32, requested []string, depth int) []*LayoutNode {
	nodes := make([]*LayoutNode, 0, len(ids))

	if depth == 0 {
		return nodes
	}

	for _, id := range ids {
		entry := &entries[id]

		nodes = append(nodes, &LayoutNode{
			ID:         id,
			Properties: entry.properties(requested),
			Children:   collectLayout(entries, entry.children, requested, depth-1),
		})
	}

	return nodes
}

package trayicon

import (
	"reflect"
	"slices"
)

// menuDiff is the set of changes between two generations of the entry table.
type menuDiff struct {
	// Root is the index of the entry whose subtree changed its structure.
	// Only valid if HasRoot is set.
	Root    int32
	HasRoot bool

	Updated []*UpdatedProperties
	Removed []*RemovedProperties
}

// Empty reports whether the diff carries no changes.
func (d menuDiff) Empty() bool {
	return !d.HasRoot && len(d.Updated) == 0 && len(d.Removed) == 0
}

// diffEntries compares two generations of the entry table.
//
// Entries are compared by position. Property changes are reported for every
// index both tables share. Indices whose children differ are structurally
// changed, and the narrowest entry covering all of them is reported as Root.
func diffEntries[T any](old, new []menuEntry[T]) menuDiff {
	var (
		diff    menuDiff
		changed []int32
	)

	shared := min(len(old), len(new))

	for i := range shared {
		id := int32(i)
		oldEntry, newEntry := &old[i], &new[i]

		var removed []string

		for key := range oldEntry.props {
			if _, ok := newEntry.props[key]; !ok {
				removed = append(removed, key)
			}
		}

		if len(removed) > 0 {
			slices.Sort(removed)
			diff.Removed = append(diff.Removed, &RemovedProperties{
				NodeID:     id,
				Properties: removed,
			})
		}

		updated := make(map[string]any)

		for key, value := range newEntry.props {
			oldValue, ok := oldEntry.props[key]
			if !ok || !reflect.DeepEqual(oldValue, value) {
				updated[key] = value
			}
		}

		if len(updated) > 0 {
			diff.Updated = append(diff.Updated, &UpdatedProperties{
				NodeID:     id,
				Properties: updated,
			})
		}

		if !slices.Equal(oldEntry.children, newEntry.children) {
			changed = append(changed, id)
		}
	}

	switch len(changed) {
	case 0:
		// A breadth-first table cannot grow or shrink without changing the
		// children of a shared entry.
		if len(old) != len(new) {
			diff.Root, diff.HasRoot = 0, true
		}
	case 1:
		diff.Root, diff.HasRoot = changed[0], true
	default:
		diff.Root, diff.HasRoot = findCommonRoot(new, changed), true
	}

	return diff
}

// findCommonRoot returns the lowest common ancestor of the changed indices,
// that is the deepest entry whose subtree contains all of them.
//
// Children always have greater indices than their parent, so a single pass
// from the last entry to the first sees every child before its parent. Every
// ancestor of the common root covers all changed indices too, and the common
// root is the one with the greatest index among them.
func findCommonRoot[T any](entries []menuEntry[T], changed []int32) int32 {
	counts := make([]int, len(entries))

	for _, id := range changed {
		if int(id) >= len(counts) {
			panic("trayicon: changed entry is out of range")
		}

		counts[id] = 1
	}

	for i := len(entries) - 1; i >= 0; i-- {
		for _, child := range entries[i].children {
			if child <= int32(i) || int(child) >= len(entries) {
				panic("trayicon: entry table is not in breadth-first order")
			}

			counts[i] += counts[child]
		}

		if counts[i] == len(changed) {
			return int32(i)
		}
	}

	panic("trayicon: changed entries have no common root")
}

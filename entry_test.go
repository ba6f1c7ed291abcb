package trayicon

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// requireBreadthFirst checks that children of every entry are a contiguous
// range after their parent, and that every entry but the root has a parent.
func requireBreadthFirst[T any](t *testing.T, entries []menuEntry[T]) {
	t.Helper()

	parent := parents(t, entries)
	require.Equal(t, int32(-1), parent[0])

	for i := 1; i < len(entries); i++ {
		require.NotEqual(t, int32(-1), parent[i], "entry %d has no parent", i)
	}

	for i, entry := range entries {
		for j, child := range entry.children {
			require.Greater(t, child, int32(i))

			if j > 0 {
				require.Equal(t, entry.children[j-1]+1, child)
			}
		}
	}
}

func TestBuildEntriesEmpty(t *testing.T) {
	for _, menu := range []*Menu[int]{nil, EmptyMenu[int]()} {
		entries := buildEntries(menu)

		require.Len(t, entries, 1)
		require.Empty(t, entries[0].children)
		require.Equal(t, map[string]any{PropertyChildrenDisplay: "submenu"}, entries[0].props)
		require.False(t, entries[0].hasSignal)
	}
}

func TestBuildEntriesProfiles(t *testing.T) {
	entries := buildEntries(profilesMenu(2))

	require.Len(t, entries, 10)
	requireBreadthFirst(t, entries)

	require.Equal(t, []int32{1, 2, 3, 4}, entries[0].children)
	require.Equal(t, []int32{5, 6, 7, 8, 9}, entries[1].children)

	require.Equal(t, map[string]any{
		PropertyLabel:           "Profiles",
		PropertyChildrenDisplay: "submenu",
	}, entries[1].props)
	require.False(t, entries[1].hasSignal)

	require.Equal(t, map[string]any{PropertyType: "separator"}, entries[2].props)
	require.False(t, entries[2].hasSignal)

	require.Equal(t, map[string]any{PropertyLabel: "Open"}, entries[3].props)
	require.True(t, entries[3].hasSignal)
	require.Equal(t, "open", entries[3].signal)

	require.Equal(t, map[string]any{
		PropertyLabel:       "Profile 3",
		PropertyToggleType:  "checkmark",
		PropertyToggleState: int32(1),
	}, entries[7].props)
	require.Equal(t, int32(0), entries[5].props[PropertyToggleState])
	require.Equal(t, "profile-2", entries[7].signal)
}

func TestBuildEntriesNestedOrder(t *testing.T) {
	menu := NewMenu(
		Submenu("A",
			Submenu("B", Button("x", "x")),
			Button("y", "y"),
		),
		Submenu("C", Button("z", "z")),
	)

	entries := buildEntries(menu)
	requireBreadthFirst(t, entries)

	labels := make([]any, 0, len(entries))
	for _, entry := range entries[1:] {
		labels = append(labels, entry.props[PropertyLabel])
	}

	require.Equal(t, []any{"A", "C", "B", "y", "z", "x"}, labels)
	require.Equal(t, []int32{3, 4}, entries[1].children)
	require.Equal(t, []int32{5}, entries[2].children)
	require.Equal(t, []int32{6}, entries[3].children)
}

func TestBuildEntriesRandomMenus(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for range 200 {
		menu := randomMenu(r)
		entries := buildEntries(menu)

		require.Len(t, entries, 1+menu.Len())
		requireBreadthFirst(t, entries)
	}
}

func TestEntryProperties(t *testing.T) {
	entry := menuEntry[int]{props: map[string]any{
		PropertyLabel:       "Mute",
		PropertyToggleType:  "checkmark",
		PropertyToggleState: int32(0),
	}}

	require.Equal(t, entry.props, entry.properties(nil))
	require.Equal(t, map[string]any{PropertyLabel: "Mute"}, entry.properties([]string{PropertyLabel, "icon-name"}))
	require.Empty(t, entry.properties([]string{"visible"}))
}

func TestCollectLayoutDepth(t *testing.T) {
	entries := buildEntries(profilesMenu(0))

	require.Empty(t, collectLayout(entries, entries[0].children, nil, 0))

	shallow := collectLayout(entries, entries[0].children, nil, 1)
	require.Len(t, shallow, 4)
	require.Empty(t, shallow[0].Children)

	full := collectLayout(entries, entries[0].children, []string{PropertyLabel}, -1)
	require.Len(t, full[0].Children, 5)
	require.Equal(t, int32(5), full[0].Children[0].ID)
	require.Equal(t, map[string]any{PropertyLabel: "Profile 1"}, full[0].Children[0].Properties)
	require.Empty(t, full[1].Properties)
}

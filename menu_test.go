package trayicon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMenuLen(t *testing.T) {
	require.Equal(t, 0, (*Menu[int])(nil).Len())
	require.Equal(t, 0, EmptyMenu[int]().Len())

	menu := NewMenu(
		Submenu("Outer",
			Button("a", 1),
			Submenu("Inner", Button("b", 2), Separator[int]()),
		),
		Button("c", 3),
	)

	require.Equal(t, 6, menu.Len())
}

func TestMenuItemConstructors(t *testing.T) {
	button := Button("Open", "open")
	require.Equal(t, KindButton, button.Kind)
	require.Equal(t, "open", button.Signal)
	require.False(t, button.Checkable)

	check := CheckButton("Mute", "mute", true)
	require.True(t, check.Checkable)
	require.True(t, check.Checked)

	sub := Submenu("More", button, Separator[string]())
	require.Equal(t, KindSubmenu, sub.Kind)
	require.Len(t, sub.Children, 2)
	require.Equal(t, KindSeparator, sub.Children[1].Kind)
}

func TestItemKindString(t *testing.T) {
	require.Equal(t, "separator", KindSeparator.String())
	require.Equal(t, "button", KindButton.String())
	require.Equal(t, "submenu", KindSubmenu.String())
	require.Equal(t, "unknown", ItemKind(42).String())
}

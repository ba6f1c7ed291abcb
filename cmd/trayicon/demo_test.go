package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelepuginivan/trayicon"
)

func TestDemoMenu(t *testing.T) {
	menu := demoMenu(2)

	require.Len(t, menu.Items, 4)
	require.Equal(t, profiles+4, menu.Len())

	profileItems := menu.Items[0]
	require.Equal(t, trayicon.KindSubmenu, profileItems.Kind)
	require.Len(t, profileItems.Children, profiles)

	for i, item := range profileItems.Children {
		require.True(t, item.Checkable)
		require.Equal(t, i == 2, item.Checked)
		require.Equal(t, demoSignal{Action: actionProfile, Profile: i}, item.Signal)
	}

	require.Equal(t, trayicon.KindSeparator, menu.Items[1].Kind)
	require.Equal(t, actionQuit, menu.Items[3].Signal.Action)
}

package trayicon

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIconFromRGBA(t *testing.T) {
	icon, err := NewIconFromRGBA([]byte{
		0xff, 0x00, 0x00, 0x80,
		0x00, 0xff, 0x00, 0xff,
	}, 2, 1)
	require.NoError(t, err)

	require.Equal(t, int32(2), icon.Width)
	require.Equal(t, int32(1), icon.Height)
	require.Equal(t, []byte{
		0x80, 0xff, 0x00, 0x00,
		0xff, 0x00, 0xff, 0x00,
	}, icon.Bytes)
}

func TestNewIconFromRGBAInvalidDimensions(t *testing.T) {
	for _, tc := range []struct {
		name          string
		size          int
		width, height int
	}{
		{"short", 7, 2, 1},
		{"long", 12, 1, 2},
		{"zero width", 0, 0, 4},
		{"negative", 4, -1, -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			icon, err := NewIconFromRGBA(make([]byte, tc.size), tc.width, tc.height)
			require.Nil(t, icon)
			require.ErrorIs(t, err, ErrInvalidDimensions)

			var trayErr *Error
			require.ErrorAs(t, err, &trayErr)
			require.Equal(t, SourceCustom, trayErr.Source)
			require.True(t, strings.HasPrefix(trayErr.Location(), "icon.go:"), trayErr.Location())
		})
	}
}

func TestNewIconFromPNG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 0xff, A: 0xff})
	img.SetNRGBA(1, 1, color.NRGBA{B: 0xff, A: 0x40})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	icon, err := NewIconFromPNG(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, int32(2), icon.Width)
	require.Equal(t, int32(2), icon.Height)
	require.Equal(t, []byte{0xff, 0xff, 0x00, 0x00}, icon.Bytes[:4])
	require.Equal(t, []byte{0x40, 0x00, 0x00, 0xff}, icon.Bytes[12:])

	_, err = NewIconFromPNG([]byte("not a png"))
	require.Error(t, err)
}

func TestNewIconFromDBusPixmap(t *testing.T) {
	icon, err := NewIconFromDBusPixmap([]any{int32(1), int32(1), []byte{1, 2, 3, 4}})
	require.NoError(t, err)
	require.Equal(t, &Icon{Width: 1, Height: 1, Bytes: []byte{1, 2, 3, 4}}, icon)

	for _, pixmap := range []any{
		nil,
		[]any{int32(1), int32(1)},
		[]any{1, int32(1), []byte{}},
		[]any{int32(1), "1", []byte{}},
		[]any{int32(1), int32(1), "pixels"},
	} {
		_, err := NewIconFromDBusPixmap(pixmap)
		require.Error(t, err)
	}
}

func TestIconSet(t *testing.T) {
	set, err := NewIconSetFromDBusProperty([][]any{
		{int32(16), int32(16), make([]byte, 16*16*4)},
		{int32(32), int32(32), make([]byte, 32*32*4)},
		{"broken"},
		{int32(22), int32(22), make([]byte, 22*22*4)},
	})
	require.NoError(t, err)
	require.Len(t, set, 3)
	require.Equal(t, int32(32), set.Largest().Width)

	require.Nil(t, IconSet(nil).Largest())
	require.Empty(t, IconSet(nil).dbusValue())

	_, err = NewIconSetFromDBusProperty([]any{})
	require.Error(t, err)
}

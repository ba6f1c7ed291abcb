package trayicon

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
)

// Icon represents icon of the system tray item.
//
// Bytes holds ARGB32 pixels in network byte order, row by row, as required by
// the StatusNotifierItem pixmap format.
type Icon struct {
	Width  int32
	Height int32
	Bytes  []byte
}

// NewIconFromRGBA returns a new [Icon] from raw RGBA pixels.
//
// The length of rgba must be width*height*4.
func NewIconFromRGBA(rgba []byte, width, height int) (*Icon, error) {
	if width <= 0 || height <= 0 || len(rgba) != width*height*4 {
		return nil, customError("icon", fmt.Errorf("%w: %dx%d icon with %d bytes", ErrInvalidDimensions, width, height, len(rgba)))
	}

	argb := make([]byte, len(rgba))

	for i := 0; i < len(rgba); i += 4 {
		argb[i] = rgba[i+3]
		argb[i+1] = rgba[i]
		argb[i+2] = rgba[i+1]
		argb[i+3] = rgba[i+2]
	}

	return &Icon{
		Width:  int32(width),
		Height: int32(height),
		Bytes:  argb,
	}, nil
}

// NewIconFromPNG returns a new [Icon] from PNG encoded image data.
func NewIconFromPNG(data []byte) (*Icon, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, customError("icon", fmt.Errorf("decode png: %w", err))
	}

	bounds := img.Bounds()

	// NRGBA keeps channels unpremultiplied, which is what the pixmap format
	// expects.
	nrgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)

	return NewIconFromRGBA(nrgba.Pix, bounds.Dx(), bounds.Dy())
}

// NewIconFromDBusPixmap returns a new [Icon] from D-Bus pixmap.
//
// Format of pixmap is as follows
//
//	[<width>, <height>, <bytes>]
//
// Where:
//   - <width>: width of the icon (int32)
//   - <height>: height of the icon (int32)
//   - <bytes>: content of the icon ([]byte)
func NewIconFromDBusPixmap(pixmap any) (*Icon, error) {
	data, ok := pixmap.([]any)
	if !ok || len(data) != 3 {
		return nil, fmt.Errorf("invalid pixmap format: expected a slice of 3 elements")
	}

	width, ok := data[0].(int32)
	if !ok {
		return nil, fmt.Errorf("invalid width type: expected int32")
	}

	height, ok := data[1].(int32)
	if !ok {
		return nil, fmt.Errorf("invalid height type: expected int32")
	}

	pixels, ok := data[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid bytes format: expected []byte")
	}

	return &Icon{
		Width:  width,
		Height: height,
		Bytes:  pixels,
	}, nil
}

// IconSet is a set of pixmaps of the same icon in different sizes.
type IconSet []*Icon

// NewIconSetFromDBusProperty returns a new [IconSet] from a D-Bus property of
// type a(iiay). Pixmaps that cannot be decoded are skipped.
func NewIconSetFromDBusProperty(value any) (IconSet, error) {
	pixmaps, ok := value.([][]any)
	if !ok {
		return nil, fmt.Errorf("invalid icon set format: expected a(iiay)")
	}

	set := make(IconSet, 0, len(pixmaps))

	for _, pixmap := range pixmaps {
		icon, err := NewIconFromDBusPixmap(pixmap)
		if err != nil {
			continue
		}

		set = append(set, icon)
	}

	return set, nil
}

// Largest returns the icon with the largest area, or nil if the set is empty.
func (s IconSet) Largest() *Icon {
	var largest *Icon

	for _, icon := range s {
		if largest == nil || icon.Width*icon.Height > largest.Width*largest.Height {
			largest = icon
		}
	}

	return largest
}

// pixmapStruct is the wire form of [Icon], (iiay).
type pixmapStruct struct {
	Width  int32
	Height int32
	Bytes  []byte
}

func (s IconSet) dbusValue() []pixmapStruct {
	pixmaps := make([]pixmapStruct, 0, len(s))

	for _, icon := range s {
		if icon == nil {
			continue
		}

		pixmaps = append(pixmaps, pixmapStruct{
			Width:  icon.Width,
			Height: icon.Height,
			Bytes:  icon.Bytes,
		})
	}

	return pixmaps
}

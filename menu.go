package trayicon

// ItemKind is the kind of a [MenuItem].
type ItemKind int

const (
	// KindSeparator is a horizontal line between items.
	KindSeparator ItemKind = iota

	// KindButton is a clickable item that emits its signal when activated.
	KindButton

	// KindSubmenu is an item that opens a nested menu.
	KindSubmenu
)

func (k ItemKind) String() string {
	switch k {
	case KindSeparator:
		return "separator"
	case KindButton:
		return "button"
	case KindSubmenu:
		return "submenu"
	default:
		return "unknown"
	}
}

// MenuItem is a single item of a [Menu].
//
// Items are plain values. Use [Separator], [Button], [CheckButton] and
// [Submenu] to construct them.
type MenuItem[T any] struct {
	Kind ItemKind

	// Label displayed by the host. Ignored for separators.
	Label string

	// Signal is delivered with [EventMenu] when a button is clicked.
	Signal T

	// Checkable reports whether the button shows a checkmark. Buttons that
	// are not checkable carry no toggle state at all.
	Checkable bool

	// Checked is the state of the checkmark. Only meaningful if Checkable is
	// set.
	Checked bool

	// Children of a submenu.
	Children []MenuItem[T]
}

// Separator returns a separator item.
func Separator[T any]() MenuItem[T] {
	return MenuItem[T]{Kind: KindSeparator}
}

// Button returns a clickable item that emits signal when clicked.
func Button[T any](label string, signal T) MenuItem[T] {
	return MenuItem[T]{
		Kind:   KindButton,
		Label:  label,
		Signal: signal,
	}
}

// CheckButton returns a clickable item with a checkmark.
func CheckButton[T any](label string, signal T, checked bool) MenuItem[T] {
	return MenuItem[T]{
		Kind:      KindButton,
		Label:     label,
		Signal:    signal,
		Checkable: true,
		Checked:   checked,
	}
}

// Submenu returns an item that opens a nested menu with the given children.
func Submenu[T any](label string, children ...MenuItem[T]) MenuItem[T] {
	return MenuItem[T]{
		Kind:     KindSubmenu,
		Label:    label,
		Children: children,
	}
}

// Menu describes the layout of a tray icon menu.
//
// A Menu is a description only. The entries served to the host are rebuilt
// from it every time it is passed to [Tray.SetMenu].
type Menu[T any] struct {
	Items []MenuItem[T]
}

// NewMenu returns a menu with the given top-level items.
func NewMenu[T any](items ...MenuItem[T]) *Menu[T] {
	return &Menu[T]{Items: items}
}

// EmptyMenu returns a menu without items.
func EmptyMenu[T any]() *Menu[T] {
	return &Menu[T]{}
}

// Len returns the number of items in the menu, including nested ones.
func (m *Menu[T]) Len() int {
	if m == nil {
		return 0
	}

	return countItems(m.Items)
}

func countItems[T any](items []MenuItem[T]) int {
	n := len(items)

	for _, item := range items {
		if item.Kind == KindSubmenu {
			n += countItems(item.Children)
		}
	}

	return n
}

package trayicon

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"
)

type emittedSignal struct {
	path   dbus.ObjectPath
	name   string
	values []any
}

// recordingEmitter records emitted signals. Emitting a signal whose name is
// failOn returns an error.
type recordingEmitter struct {
	mu      sync.Mutex
	signals []emittedSignal
	failOn  string
	onEmit  func(emittedSignal)
}

func (e *recordingEmitter) Emit(path dbus.ObjectPath, name string, values ...any) error {
	signal := emittedSignal{path: path, name: name, values: values}

	e.mu.Lock()
	if name == e.failOn {
		e.mu.Unlock()
		return errors.New("connection closed")
	}

	e.signals = append(e.signals, signal)
	onEmit := e.onEmit
	e.mu.Unlock()

	if onEmit != nil {
		onEmit(signal)
	}

	return nil
}

func (e *recordingEmitter) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0, len(e.signals))
	for _, s := range e.signals {
		names = append(names, s.name)
	}

	return names
}

func (e *recordingEmitter) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.signals = nil
}

// recordingBus is a [signalMatcher] and a [signalSubscriber] that counts
// active matches and channels. Removing a match fails with failRemove if it is
// set.
type recordingBus struct {
	recordingEmitter

	matches    map[string]int
	channels   int
	failRemove error
}

func newRecordingBus() *recordingBus {
	return &recordingBus{matches: make(map[string]int)}
}

func (b *recordingBus) AddMatchSignal(options ...dbus.MatchOption) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.matches[fmt.Sprint(options)]++
	return nil
}

func (b *recordingBus) RemoveMatchSignal(options ...dbus.MatchOption) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failRemove != nil {
		return b.failRemove
	}

	b.matches[fmt.Sprint(options)]--
	return nil
}

func (b *recordingBus) Signal(chan<- *dbus.Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.channels++
}

func (b *recordingBus) RemoveSignal(chan<- *dbus.Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.channels--
}

// total returns the number of active matches.
func (b *recordingBus) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, count := range b.matches {
		n += count
	}

	return n
}

func (b *recordingBus) active(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.matches[fmt.Sprint(ownerChangedMatch(name))]
}

// recordingProperties is a [propertySetter] that keeps the last value of every
// property.
type recordingProperties struct {
	mu     sync.Mutex
	values map[string]any
}

func newRecordingProperties() *recordingProperties {
	return &recordingProperties{values: make(map[string]any)}
}

func (p *recordingProperties) SetMust(iface, property string, v any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.values[iface+"."+property] = v
}

func (p *recordingProperties) get(iface, property string) any {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.values[iface+"."+property]
}

// recordingCallback collects events delivered to a tray callback.
type recordingCallback[T any] struct {
	mu     sync.Mutex
	events []Event[T]
}

func (c *recordingCallback[T]) record(e Event[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, e)
}

func (c *recordingCallback[T]) all() []Event[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Event[T](nil), c.events...)
}

// profilesMenu is the menu of the demo application.
func profilesMenu(selected int) *Menu[string] {
	profiles := make([]MenuItem[string], 0, 5)

	for i := range 5 {
		profiles = append(profiles, CheckButton(fmt.Sprintf("Profile %d", i+1), fmt.Sprintf("profile-%d", i), selected == i))
	}

	return NewMenu(
		Submenu("Profiles", profiles...),
		Separator[string](),
		Button("Open", "open"),
		Button("Quit", "quit"),
	)
}

// randomItems returns up to width random items nested up to depth levels.
func randomItems(r *rand.Rand, width, depth int) []MenuItem[int] {
	n := r.IntN(width + 1)
	items := make([]MenuItem[int], 0, n)

	for range n {
		switch k := r.IntN(6); {
		case k == 0:
			items = append(items, Separator[int]())
		case k <= 2 || depth == 0:
			label := fmt.Sprintf("item %d", r.IntN(4))

			if r.IntN(2) == 0 {
				items = append(items, CheckButton(label, r.IntN(100), r.IntN(2) == 0))
			} else {
				items = append(items, Button(label, r.IntN(100)))
			}
		default:
			items = append(items, Submenu(fmt.Sprintf("menu %d", r.IntN(4)), randomItems(r, width, depth-1)...))
		}
	}

	return items
}

func randomMenu(r *rand.Rand) *Menu[int] {
	return NewMenu(randomItems(r, 4, 3)...)
}

// parents returns the parent of every entry, -1 for the root.
func parents[T any](t *testing.T, entries []menuEntry[T]) []int32 {
	t.Helper()

	parent := make([]int32, len(entries))
	for i := range parent {
		parent[i] = -1
	}

	for i, entry := range entries {
		for _, child := range entry.children {
			require.Equal(t, int32(-1), parent[child], "entry %d has two parents", child)
			parent[child] = int32(i)
		}
	}

	return parent
}

// lowestCommonAncestor walks ancestor chains of every id.
func lowestCommonAncestor(parent []int32, ids []int32) int32 {
	isAncestor := func(a, id int32) bool {
		for ; id >= 0; id = parent[id] {
			if id == a {
				return true
			}
		}

		return false
	}

	for candidate := ids[0]; candidate >= 0; candidate = parent[candidate] {
		covers := true

		for _, id := range ids {
			if !isAncestor(candidate, id) {
				covers = false
				break
			}
		}

		if covers {
			return candidate
		}
	}

	return -1
}

package trayicon

import (
	"sync"

	"github.com/rs/zerolog"
)

// trayUpdate is a pending change of a tray.
type trayUpdate struct {
	name  string
	apply func() error
}

// updateQueue applies updates one by one in the order they were pushed.
//
// Pushing never blocks, so updates can be requested from the tray callback
// while another update is being delivered. Failed updates are logged and
// skipped: the host keeps whatever it received last.
type updateQueue struct {
	log  zerolog.Logger
	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	pending []trayUpdate
}

func newUpdateQueue(logger zerolog.Logger) *updateQueue {
	q := &updateQueue{
		log:  logger,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	q.wg.Add(1)
	go q.run()

	return q
}

// push schedules an update. It reports false if the queue is closed.
func (q *updateQueue) push(name string, apply func() error) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	q.pending = append(q.pending, trayUpdate{name: name, apply: apply})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return true
}

// close stops the queue after the update in progress, if any. Pending updates
// are dropped.
func (q *updateQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}

	q.closed = true
	q.pending = nil
	q.mu.Unlock()

	close(q.done)
	q.wg.Wait()
}

func (q *updateQueue) run() {
	defer q.wg.Done()

	for {
		select {
		case <-q.done:
			return
		case <-q.wake:
		}

		for {
			update, ok := q.pop()
			if !ok {
				break
			}

			if err := update.apply(); err != nil {
				q.log.Warn().Err(err).Str("update", update.name).Msg("failed to send update")
			}
		}
	}
}

func (q *updateQueue) pop() (trayUpdate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.pending) == 0 {
		return trayUpdate{}, false
	}

	update := q.pending[0]
	q.pending = q.pending[1:]

	return update, true
}

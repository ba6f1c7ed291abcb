package trayicon

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestUpdateQueueOrder(t *testing.T) {
	q := newUpdateQueue(zerolog.Nop())
	defer q.close()

	var (
		mu      sync.Mutex
		applied []int
		done    = make(chan struct{})
	)

	for i := range 100 {
		require.True(t, q.push("menu", func() error {
			mu.Lock()
			applied = append(applied, i)
			mu.Unlock()

			if i == 99 {
				close(done)
			}

			return nil
		}))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("updates were not applied")
	}

	mu.Lock()
	defer mu.Unlock()

	for i, v := range applied {
		require.Equal(t, i, v)
	}
}

func TestUpdateQueuePushFromUpdate(t *testing.T) {
	q := newUpdateQueue(zerolog.Nop())
	defer q.close()

	done := make(chan struct{})

	q.push("first", func() error {
		require.True(t, q.push("second", func() error {
			close(done)
			return nil
		}))

		return errors.New("host is gone")
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("nested update was not applied")
	}
}

func TestUpdateQueueClose(t *testing.T) {
	q := newUpdateQueue(zerolog.Nop())

	started := make(chan struct{})
	release := make(chan struct{})
	droppedRan := false

	q.push("slow", func() error {
		close(started)
		<-release
		return nil
	})

	<-started

	q.push("dropped", func() error {
		droppedRan = true
		return nil
	})

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()

	q.close()
	q.close()

	require.False(t, droppedRan)
	require.False(t, q.push("late", func() error { return nil }))
}

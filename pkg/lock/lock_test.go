package lock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutexLockerSerializesSameKey(t *testing.T) {
	locker := NewMutexLocker()

	const workers = 20

	counter := 0

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			release, err := locker.Acquire(context.Background(), "project-1")
			require.NoError(t, err)
			defer release()

			counter++
		}()
	}

	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestMutexLockerIndependentKeys(t *testing.T) {
	locker := NewMutexLocker()

	releaseA, err := locker.Acquire(context.Background(), "project-a")
	require.NoError(t, err)

	// A held lock on one key must not block another key.
	releaseB, err := locker.Acquire(context.Background(), "project-b")
	require.NoError(t, err)

	releaseB()
	releaseA()
}

func TestMutexLockerReacquireAfterRelease(t *testing.T) {
	locker := NewMutexLocker()

	release, err := locker.Acquire(context.Background(), "project-1")
	require.NoError(t, err)
	release()

	release, err = locker.Acquire(context.Background(), "project-1")
	require.NoError(t, err)
	release()
}

package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanout_DeliversInOrder(t *testing.T) {
	f := newFanout[int]()
	sub := f.subscribe(4)
	defer sub.Close()

	f.publish(1)
	f.publish(2)
	f.publish(3)

	assert.Equal(t, 1, <-sub.C())
	assert.Equal(t, 2, <-sub.C())
	assert.Equal(t, 3, <-sub.C())
}

func TestFanout_DropsSlowConsumer(t *testing.T) {
	f := newFanout[int]()
	slow := f.subscribe(1)
	fast := f.subscribe(4)
	defer fast.Close()

	f.publish(1)
	// slow's buffer is full; the second publish drops it.
	f.publish(2)

	require.Equal(t, 1, f.len())

	assert.Equal(t, 1, <-slow.C())
	_, open := <-slow.C()
	assert.False(t, open, "dropped subscriber's channel must be closed")

	assert.Equal(t, 1, <-fast.C())
	assert.Equal(t, 2, <-fast.C())
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	f := newFanout[int]()
	sub := f.subscribe(1)

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, f.len())
	_, open := <-sub.C()
	assert.False(t, open)

	// Publishing after every subscriber left is a no-op.
	f.publish(42)
}

func TestSubscription_CloseAfterDrop(t *testing.T) {
	f := newFanout[int]()
	sub := f.subscribe(1)

	f.publish(1)
	f.publish(2)
	require.Equal(t, 0, f.len())

	// The feed already dropped the subscriber; Close must not panic.
	sub.Close()
}

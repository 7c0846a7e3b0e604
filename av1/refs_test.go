package av1

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEmptySlot(t *testing.T) {
	rs := newRefState(newBufferPool())

	_, err := rs.resolve(3)
	assert.True(t, errors.Is(err, ErrCorruptBitstream))

	_, err = rs.resolve(-1)
	assert.True(t, errors.Is(err, ErrCorruptBitstream))
	_, err = rs.resolve(numRefFrames)
	assert.True(t, errors.Is(err, ErrCorruptBitstream))
}

func TestStagePublishRefCounts(t *testing.T) {
	pool := newBufferPool()
	rs := newRefState(pool)

	a, err := pool.get()
	require.NoError(t, err)
	rs.stageRefresh(a, 0xff)
	rs.publish()
	pool.unref(a) // decode's own hold

	// a sits in all eight slots.
	assert.Equal(t, 8, pool.refCountOf(a))

	// b replaces slots 0 and 1.
	b, err := pool.get()
	require.NoError(t, err)
	rs.stageRefresh(b, 0x03)
	rs.publish()
	pool.unref(b)

	assert.Equal(t, 2, pool.refCountOf(b))
	assert.Equal(t, 6, pool.refCountOf(a))

	got, err := rs.resolve(0)
	require.NoError(t, err)
	assert.Same(t, b, got)
	got, err = rs.resolve(2)
	require.NoError(t, err)
	assert.Same(t, a, got)
}

func TestAbortRollsBackExactly(t *testing.T) {
	pool := newBufferPool()
	rs := newRefState(pool)

	a, err := pool.get()
	require.NoError(t, err)
	rs.stageRefresh(a, 0xff)
	rs.publish()
	pool.unref(a)

	b, err := pool.get()
	require.NoError(t, err)
	rs.stageRefresh(b, 0x0f)
	rs.abort(b)
	pool.unref(b)

	assert.Equal(t, 8, pool.refCountOf(a))
	assert.Equal(t, 0, pool.refCountOf(b))
	for i := 0; i < numRefFrames; i++ {
		got, err := rs.resolve(i)
		require.NoError(t, err)
		assert.Same(t, a, got)
	}
}

func TestSaveContext(t *testing.T) {
	pool := newBufferPool()
	rs := newRefState(pool)

	a, _ := pool.get()
	rs.stageRefresh(a, 0xff)
	rs.publish()

	fc := newFrameContext()
	rs.saveContext(0x01, fc)
	assert.Same(t, fc, rs.slots[0].ctx)
}

func TestPoolExhaustion(t *testing.T) {
	pool := newBufferPool()
	var held []*frameBuffer
	for i := 0; i < frameBufferCount; i++ {
		fb, err := pool.get()
		require.NoError(t, err)
		held = append(held, fb)
	}

	_, err := pool.get()
	assert.True(t, errors.Is(err, ErrResourceExhaustion))

	pool.unref(held[0])
	fb, err := pool.get()
	require.NoError(t, err)
	assert.Same(t, held[0], fb)
}

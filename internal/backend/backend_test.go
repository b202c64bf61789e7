package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAcquireRelease(t *testing.T) {
	p := NewPool(3, 64)
	assert.Equal(t, 3, p.Free())
	assert.Equal(t, 3, p.Cap())
	assert.Equal(t, 64, p.ChunkSize())

	var got []Handle
	for i := 0; i < 3; i++ {
		h, ok := p.Acquire()
		require.True(t, ok)
		got = append(got, h)
	}
	assert.Equal(t, []Handle{0, 1, 2}, got)

	_, ok := p.Acquire()
	assert.False(t, ok)

	p.Release(1)
	h, ok := p.Acquire()
	require.True(t, ok)
	assert.Equal(t, Handle(1), h)
}

func TestPoolDoubleReleasePanics(t *testing.T) {
	p := NewPool(2, 16)
	h, _ := p.Acquire()
	p.Release(h)
	assert.Panics(t, func() { p.Release(h) })
	assert.Panics(t, func() { p.Release(Handle(9)) })
}

func TestPoolBytesDisjoint(t *testing.T) {
	p := NewPool(2, 8)
	a, _ := p.Acquire()
	b, _ := p.Acquire()

	copy(p.Bytes(a), "aaaaaaaa")
	copy(p.Bytes(b), "bbbbbbbb")
	assert.Equal(t, "aaaaaaaa", string(p.Bytes(a)))
	assert.Len(t, p.Bytes(a), 8)
	assert.Equal(t, 8, cap(p.Bytes(a)))
}

func TestRingFIFO(t *testing.T) {
	r := NewRing(2)
	assert.True(t, r.Push(Desc{Handle: 1, Len: 10}))
	assert.True(t, r.Push(Desc{Handle: 2, Len: 20}))
	assert.False(t, r.Push(Desc{Handle: 3}))
	assert.True(t, r.Full())

	d, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, Desc{Handle: 1, Len: 10}, d)

	// Wraps around
	assert.True(t, r.Push(Desc{Handle: 3, Len: 30}))
	d, _ = r.Pop()
	assert.Equal(t, Handle(2), d.Handle)
	d, _ = r.Pop()
	assert.Equal(t, Handle(3), d.Handle)

	_, ok = r.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 2, r.Cap())
}

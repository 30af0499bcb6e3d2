package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	id     int
	resets int
	closed bool
}

func (h *fakeHandle) Reset()      { h.resets++ }
func (h *fakeHandle) Close() error { h.closed = true; return nil }

func newTestPool(maxSize int) (*Pool, *int) {
	n := 0
	factory := func(host string) (Handle, error) {
		n++
		return &fakeHandle{id: n}, nil
	}
	return New(maxSize, factory), &n
}

func TestAcquireAllocatesWhenEmpty(t *testing.T) {
	p, allocated := newTestPool(2)
	h, err := p.Acquire("https://example.com/path")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, 1, *allocated)
}

func TestReleaseThenAcquireReusesAndResets(t *testing.T) {
	p, allocated := newTestPool(2)
	h, err := p.Acquire("https://example.com/a")
	require.NoError(t, err)

	require.NoError(t, p.Release(h, "https://example.com/a"))
	assert.Equal(t, 1, p.Size("example.com"))

	h2, err := p.Acquire("https://example.com/b")
	require.NoError(t, err)
	assert.Same(t, h, h2)
	assert.Equal(t, 1, *allocated, "should not have allocated a second handle")
	assert.Equal(t, 1, h.(*fakeHandle).resets)
}

func TestReleaseClosesWhenAtCapacity(t *testing.T) {
	p, _ := newTestPool(1)
	h1, _ := p.Acquire("https://example.com")
	h2, _ := p.Acquire("https://example.com")

	require.NoError(t, p.Release(h1, "https://example.com"))
	require.NoError(t, p.Release(h2, "https://example.com"))

	assert.Equal(t, 1, p.Size("example.com"))
	assert.True(t, h2.(*fakeHandle).closed)
	assert.False(t, h1.(*fakeHandle).closed)
}

func TestPoolDisabledAtZeroClosesOnRelease(t *testing.T) {
	p, _ := newTestPool(0)
	h, _ := p.Acquire("https://example.com")
	require.NoError(t, p.Release(h, "https://example.com"))
	assert.Equal(t, 0, p.Size("example.com"))
	assert.True(t, h.(*fakeHandle).closed)
}

func TestSetMaxPoolSizeShrinksAndCloses(t *testing.T) {
	p, _ := newTestPool(5)
	var handles []Handle
	for i := 0; i < 3; i++ {
		h, _ := p.Acquire("https://example.com")
		handles = append(handles, h)
	}
	for _, h := range handles {
		require.NoError(t, p.Release(h, "https://example.com"))
	}
	require.Equal(t, 3, p.Size("example.com"))

	errs := p.SetMaxPoolSize(1)
	assert.Empty(t, errs)
	assert.Equal(t, 1, p.Size("example.com"))
	assert.True(t, handles[0].(*fakeHandle).closed)
	assert.True(t, handles[1].(*fakeHandle).closed)
	assert.False(t, handles[2].(*fakeHandle).closed)
}

func TestHostIsolation(t *testing.T) {
	p, _ := newTestPool(2)
	hA, _ := p.Acquire("https://a.example.com")
	require.NoError(t, p.Release(hA, "https://a.example.com"))

	assert.Equal(t, 1, p.Size("a.example.com"))
	assert.Equal(t, 0, p.Size("b.example.com"))
}

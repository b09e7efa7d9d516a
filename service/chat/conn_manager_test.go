package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnManagerPush(t *testing.T) {
	m := NewConnManager()
	c := NewClient("c1", "u1", nil, 1)
	m.Add(c)

	require.NoError(t, m.Push("c1", []byte("a")))
	assert.ErrorIs(t, m.Push("c1", []byte("b")), ErrQueueFull)
	assert.ErrorIs(t, m.Push("c2", []byte("a")), ErrConnNotFound)
	assert.Equal(t, []byte("a"), <-c.Send)
}

func TestConnManagerRemoveCloses(t *testing.T) {
	m := NewConnManager()
	c := NewClient("c1", "", nil, 4)
	m.Add(c)
	m.Remove("c1")
	m.Remove("c1")

	assert.Equal(t, 0, m.Len())
	assert.False(t, c.Enqueue([]byte("x")))
	select {
	case <-c.Done():
	default:
		t.Fatal("client not closed")
	}
}

func TestConnManagerCloseAll(t *testing.T) {
	m := NewConnManager()
	a, b := NewClient("a", "u1", nil, 1), NewClient("b", "u2", nil, 1)
	m.Add(a)
	m.Add(b)
	m.CloseAll()

	assert.Equal(t, 0, m.Len())
	assert.False(t, a.Enqueue(nil))
	assert.False(t, b.Enqueue(nil))
}

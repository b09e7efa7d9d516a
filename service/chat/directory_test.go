package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectoryRegisterLookup(t *testing.T) {
	d := NewDirectory()
	_, ok := d.Lookup("u1")
	assert.False(t, ok)

	d.Register("u1", "c1")
	got, ok := d.Lookup("u1")
	assert.True(t, ok)
	assert.Equal(t, "c1", got)

	d.Register("", "c2")
	d.Register("u2", "")
	assert.Equal(t, 1, d.Len())
}

func TestDirectoryLastRegistrationWins(t *testing.T) {
	d := NewDirectory()
	d.Register("u1", "c1")
	d.Register("u1", "c2")

	got, _ := d.Lookup("u1")
	assert.Equal(t, "c2", got)

	// the replaced connection disconnecting late keeps the newer one
	d.Unregister("c1")
	got, ok := d.Lookup("u1")
	assert.True(t, ok)
	assert.Equal(t, "c2", got)
}

func TestDirectoryUnregisterIdempotent(t *testing.T) {
	d := NewDirectory()
	d.Register("u2", "c9")
	d.Unregister("c9")
	d.Unregister("c9")
	d.Unregister("never-seen")

	_, ok := d.Lookup("u2")
	assert.False(t, ok)
	assert.Equal(t, 0, d.Len())
	assert.Empty(t, d.byConn)
}

func TestDirectoryConnRebound(t *testing.T) {
	d := NewDirectory()
	d.Register("u1", "c1")
	d.Register("u2", "c1")

	_, ok := d.Lookup("u1")
	assert.False(t, ok)
	got, _ := d.Lookup("u2")
	assert.Equal(t, "c1", got)
}

func TestDirectoryConcurrentAccess(t *testing.T) {
	d := NewDirectory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i%5)
			conn := fmt.Sprintf("c%d", i)
			d.Register(user, conn)
			d.Lookup(user)
			d.Unregister(conn)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, d.Len())
	assert.Empty(t, d.byConn)
}

func TestDirectoryUnregisterUser(t *testing.T) {
	d := NewDirectory()
	d.Register("u1", "c1")
	d.UnregisterUser("u1")
	d.UnregisterUser("u1")
	_, ok := d.Lookup("u1")
	assert.False(t, ok)

	// the conn is forgotten too, so re-using it for someone else is clean
	d.Register("u2", "c1")
	d.Unregister("c1")
	assert.Equal(t, 0, d.Len())
}

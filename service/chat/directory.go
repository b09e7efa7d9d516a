package chat

import "sync"

// Directory maps a user to the one connection currently registered for them.
// A later Register for the same user replaces the earlier connection.
type Directory struct {
	mu     sync.RWMutex
	byUser map[string]string // userID -> connID
	byConn map[string]string // connID -> userID
}

func NewDirectory() *Directory {
	return &Directory{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// Register binds userID to connID. Empty ids are ignored.
func (d *Directory) Register(userID, connID string) {
	if userID == "" || connID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.byUser[userID]; ok && old != connID {
		delete(d.byConn, old)
	}
	if prev, ok := d.byConn[connID]; ok && prev != userID {
		if d.byUser[prev] == connID {
			delete(d.byUser, prev)
		}
	}
	d.byUser[userID] = connID
	d.byConn[connID] = userID
}

// Lookup returns the live connection of userID.
func (d *Directory) Lookup(userID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	connID, ok := d.byUser[userID]
	return connID, ok
}

// Unregister forgets connID. The user's slot is cleared only while it still
// points at connID, so a late disconnect of a replaced connection leaves the
// newer one registered. Unknown ids are a no-op.
func (d *Directory) Unregister(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	userID, ok := d.byConn[connID]
	if !ok {
		return
	}
	delete(d.byConn, connID)
	if d.byUser[userID] == connID {
		delete(d.byUser, userID)
	}
}

// UnregisterUser clears userID's slot whatever connection it holds.
func (d *Directory) UnregisterUser(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	connID, ok := d.byUser[userID]
	if !ok {
		return
	}
	delete(d.byUser, userID)
	delete(d.byConn, connID)
}

// Len is the number of registered users.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byUser)
}

package mgo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	mgo "PSocial/data/database/mgo/mongoutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitReadyTimesOutWithLastError(t *testing.T) {
	m := NewManager()
	var calls atomic.Int32
	m.connect = func(context.Context, *mgo.Config) (*mgo.Client, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartAsync(ctx, &mgo.Config{Database: "psocial"})

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer waitCancel()
	err := m.WaitReady(waitCtx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "connection refused")
	assert.GreaterOrEqual(t, calls.Load(), int32(1))

	_, err = m.DB()
	assert.ErrorIs(t, err, ErrNotReady)
}

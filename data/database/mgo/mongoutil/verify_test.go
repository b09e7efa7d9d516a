package mongoutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestValidateAndSetDefaultsBuildsURI(t *testing.T) {
	c := &Config{
		Address:  []string{"m1:27017", "m2:27017"},
		Database: "psocial",
		Username: "root",
		Password: "p@ss",
	}
	require.NoError(t, c.ValidateAndSetDefaults())
	assert.Equal(t, "mongodb://root:p%40ss@m1:27017,m2:27017/psocial?authSource=psocial&maxPoolSize=100", c.Uri)
	assert.Equal(t, defaultMaxRetry, c.MaxRetry)
}

func TestValidateAndSetDefaultsKeepsURI(t *testing.T) {
	c := &Config{Uri: "mongodb://localhost:27017", Database: "psocial", MaxPoolSize: 5}
	require.NoError(t, c.ValidateAndSetDefaults())
	assert.Equal(t, "mongodb://localhost:27017", c.Uri)
	assert.Equal(t, 5, c.MaxPoolSize)
}

func TestValidateAndSetDefaultsErrors(t *testing.T) {
	assert.Error(t, (&Config{Database: "x"}).ValidateAndSetDefaults())
	assert.Error(t, (&Config{Uri: "mongodb://h"}).ValidateAndSetDefaults())
}

func TestShouldRetry(t *testing.T) {
	ctx := context.Background()
	assert.True(t, shouldRetry(ctx, errors.New("dial tcp: refused")))
	assert.False(t, shouldRetry(ctx, mongo.CommandError{Code: 18}))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, shouldRetry(canceled, errors.New("x")))
}

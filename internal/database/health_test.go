package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthChecker(t *testing.T) {
	t.Run("healthy pool", func(t *testing.T) {
		h := NewHealthChecker(fakePinger{})
		assert.Equal(t, "postgres", h.Name())
		assert.NoError(t, h.Check(context.Background()))
	})

	t.Run("ping error is surfaced", func(t *testing.T) {
		h := NewHealthChecker(fakePinger{err: errors.New("boom")})
		assert.EqualError(t, h.Check(context.Background()), "boom")
	})

	t.Run("nil pool", func(t *testing.T) {
		h := NewHealthChecker(nil)
		assert.Error(t, h.Check(context.Background()))
	})
}

func TestNewPostgresPool_NilConfig(t *testing.T) {
	pool, err := NewPostgresPool(context.Background(), nil)
	assert.Nil(t, pool)
	assert.Error(t, err)
}

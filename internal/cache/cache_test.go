package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nichlasrohde/ha-ecl-modbus/internal/codec"
)

func TestPutAndGet(t *testing.T) {
	c := New()
	at := time.Now()

	c.Put(4000, codec.Number(21.5), at)

	e, ok := c.Get(4000)
	require.True(t, ok)
	assert.Equal(t, uint16(4000), e.Address)
	assert.Equal(t, 21.5, e.Value.Num)
	assert.Equal(t, at, e.UpdatedAt)
	assert.NoError(t, e.Err)
	assert.False(t, e.OutOfRange)

	_, ok = c.Get(4010)
	assert.False(t, ok)
}

func TestMarkError_PreservesValue(t *testing.T) {
	c := New()
	readAt := time.Now().Add(-time.Minute)
	failAt := time.Now()

	c.Put(4000, codec.Number(21.5), readAt)
	c.MarkError(4000, errors.New("link down"), failAt)

	e, ok := c.Get(4000)
	require.True(t, ok)
	assert.Equal(t, 21.5, e.Value.Num, "stale value kept")
	assert.Equal(t, readAt, e.UpdatedAt, "value timestamp untouched")
	assert.Equal(t, failAt, e.AttemptedAt)
	assert.Error(t, e.Err)
}

func TestMarkError_WithoutPriorValue(t *testing.T) {
	c := New()
	c.MarkError(4000, errors.New("link down"), time.Now())

	e, ok := c.Get(4000)
	require.True(t, ok)
	assert.Error(t, e.Err)
	assert.True(t, e.UpdatedAt.IsZero())
}

func TestPut_ClearsPreviousError(t *testing.T) {
	c := New()
	c.MarkError(4000, errors.New("link down"), time.Now())
	c.Put(4000, codec.Number(19.0), time.Now())

	e, _ := c.Get(4000)
	assert.NoError(t, e.Err)
}

func TestPutOutOfRange(t *testing.T) {
	c := New()
	c.PutOutOfRange(4000, codec.Number(999), time.Now())

	e, _ := c.Get(4000)
	assert.True(t, e.OutOfRange)
	assert.Equal(t, 999.0, e.Value.Num)
}

func TestDrop(t *testing.T) {
	c := New()
	c.Put(4000, codec.Number(1), time.Now())
	c.Drop(4000)

	_, ok := c.Get(4000)
	assert.False(t, ok)
}

func TestSnapshot_Ordered(t *testing.T) {
	c := New()
	c.Put(21700, codec.Number(3), time.Now())
	c.Put(4000, codec.Number(1), time.Now())
	c.Put(4010, codec.Number(2), time.Now())

	snap := c.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, uint16(4000), snap[0].Address)
	assert.Equal(t, uint16(4010), snap[1].Address)
	assert.Equal(t, uint16(21700), snap[2].Address)
}

package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewECL_TableIsValid(t *testing.T) {
	cat, err := NewECL()
	require.NoError(t, err)

	all := cat.All()
	require.NotEmpty(t, all)

	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Address, all[i].Address, "catalog must be ordered by address")
	}
}

func TestNew_RejectsDuplicatesAndOverlaps(t *testing.T) {
	cases := []struct {
		name string
		defs []Definition
	}{
		{
			name: "duplicate address",
			defs: []Definition{
				{Key: "a", Address: 100, Wire: Int16},
				{Key: "b", Address: 100, Wire: Int16},
			},
		},
		{
			name: "duplicate key",
			defs: []Definition{
				{Key: "a", Address: 100, Wire: Int16},
				{Key: "a", Address: 200, Wire: Int16},
			},
		},
		{
			name: "overlapping span",
			defs: []Definition{
				{Key: "a", Address: 100, Wire: Float32},
				{Key: "b", Address: 101, Wire: Int16},
			},
		},
		{
			name: "missing key",
			defs: []Definition{
				{Address: 100, Wire: Int16},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.defs)
			assert.Error(t, err)
		})
	}
}

func TestLookup(t *testing.T) {
	cat, err := NewECL()
	require.NoError(t, err)

	def, err := cat.Lookup(4000)
	require.NoError(t, err)
	assert.Equal(t, "s1_temperature", def.Key)
	assert.Equal(t, Float32, def.Wire)
	assert.Equal(t, uint16(2), def.Span())

	_, err = cat.Lookup(9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestByKey(t *testing.T) {
	cat, err := NewECL()
	require.NoError(t, err)

	def, err := cat.ByKey("heat_return_temperature_reference")
	require.NoError(t, err)
	assert.Equal(t, uint16(21210), def.Address)
	assert.Equal(t, ReadWrite, def.Access)
	require.NotNil(t, def.Min)
	require.NotNil(t, def.Max)
	assert.Equal(t, 5.0, *def.Min)
	assert.Equal(t, 150.0, *def.Max)

	_, err = cat.ByKey("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetEnabled(t *testing.T) {
	cat, err := NewECL()
	require.NoError(t, err)

	before := len(cat.Enabled())
	require.NoError(t, cat.SetEnabled(4010, false))
	assert.Len(t, cat.Enabled(), before-1)

	for _, d := range cat.Enabled() {
		assert.NotEqual(t, uint16(4010), d.Address)
	}

	require.NoError(t, cat.SetEnabled(4010, true))
	assert.Len(t, cat.Enabled(), before)

	err = cat.SetEnabled(1, true)
	assert.True(t, errors.Is(err, ErrNotFound))
}

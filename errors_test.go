package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomy(t *testing.T) {
	err := NewError(ErrQuery, "something failed")
	require.EqualError(t, err, "duckdb: something failed")
	assert.True(t, IsError(err, ErrQuery))
	assert.False(t, IsError(err, ErrOpen))
}

func TestErrorFormatting(t *testing.T) {
	err := NewErrorf(ErrRegistration, "engine rejected %q", "my_func")
	require.EqualError(t, err, `duckdb: engine rejected "my_func"`)
	assert.True(t, IsError(err, ErrRegistration))
}

func TestIsErrorOnForeignError(t *testing.T) {
	assert.False(t, IsError(assert.AnError, ErrGeneric))
	assert.False(t, IsError(nil, ErrGeneric))
}

func TestTypeMismatchNamesBothTypes(t *testing.T) {
	err := typeMismatchError(TypeInteger, TypeVarchar)
	require.True(t, IsError(err, ErrTypeMismatch))
	assert.Contains(t, err.Error(), "INTEGER")
	assert.Contains(t, err.Error(), "VARCHAR")
}

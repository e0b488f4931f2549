package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSteps(t *testing.T) {
	n, err := parseSteps(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = parseSteps([]string{" 3 "})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = parseSteps([]string{"0"})
	assert.Error(t, err)
	_, err = parseSteps([]string{"x"})
	assert.Error(t, err)
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion([]string{"2"})
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = parseVersion(nil)
	assert.Error(t, err)
	_, err = parseVersion([]string{"-1"})
	assert.Error(t, err)
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPair(t *testing.T) {
	q, a, ok := splitPair("столица франции = париж")
	assert.True(t, ok)
	assert.Equal(t, "столица франции", q)
	assert.Equal(t, "париж", a)

	q, a, ok = splitPair("x=y")
	assert.True(t, ok)
	assert.Equal(t, "x", q)
	assert.Equal(t, "y", a)

	_, _, ok = splitPair("no separator")
	assert.False(t, ok)

	_, _, ok = splitPair(" = empty question")
	assert.False(t, ok)
}

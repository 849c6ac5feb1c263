package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPtrDeref(t *testing.T) {
	p := Ptr(5)
	assert.Equal(t, 5, *p)
	assert.Equal(t, 5, Deref(p, 0))
	assert.Equal(t, -1, Deref[int](nil, -1))
}

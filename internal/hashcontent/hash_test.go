package hashcontent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashDeterministic(t *testing.T) {
	a := Hash("package main\n")
	b := Hash("package main\n")
	assert.Equal(t, a, b)
}

func TestHashWhitespaceSensitive(t *testing.T) {
	a := Hash("foo")
	b := Hash("foo ")
	assert.NotEqual(t, a, b)
}

func TestHashIsTagged(t *testing.T) {
	h := Hash("anything")
	assert.True(t, strings.HasPrefix(h, "xxh64:") || strings.HasPrefix(h, "sha256:"))
}

func TestStrongHashFallbackIsSHA256Shaped(t *testing.T) {
	h := strongHash("hello")
	assert.Len(t, h, 64)
}

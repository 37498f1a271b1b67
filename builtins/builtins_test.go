package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrCmp(t *testing.T) {
	assert.Equal(t, int8(0), StrCmp([]byte("abc"), []byte("abc")))
	assert.Equal(t, int8(-1), StrCmp([]byte("abc"), []byte("abd")))
	assert.Equal(t, int8(1), StrCmp([]byte("abd"), []byte("abc")))
	// A proper prefix orders first.
	assert.Equal(t, int8(-1), StrCmp([]byte("ab"), []byte("abc")))
	assert.Equal(t, int8(1), StrCmp([]byte("abc"), []byte("ab")))
}

func TestStrEq(t *testing.T) {
	assert.True(t, StrEq([]byte("hi!"), []byte("hi!")))
	assert.False(t, StrEq([]byte("hi!"), []byte("ho!")))
	assert.False(t, StrEq([]byte("hi"), []byte("hi!")))
	assert.True(t, StrEq(nil, nil))
}

func TestSkipInt(t *testing.T) {
	// Continuation bits set on the first two bytes: the varint is three
	// bytes long.
	assert.Equal(t, 3, SkipInt([]byte{0x81, 0x82, 0x03, 0x04}))
	assert.Equal(t, 1, SkipInt([]byte{0x05, 0x06}))
}

func TestPutchard(t *testing.T) {
	assert.Equal(t, 0.0, Putchard(72.0))
}

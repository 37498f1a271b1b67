// Package builtins defines the native helpers programs can declare with
// 'extern'. They are C functions exported from the process image
// (-rdynamic), so the dynamic linker binds them when a JIT'd module loads.
package builtins

/*
#cgo LDFLAGS: -rdynamic

#include <stdio.h>
#include <stdint.h>

// putchard - putchar that takes a double and returns 0.
double putchard(double x) {
	fputc((char)x, stderr);
	return 0;
}

// my_strcmp - lexicographic compare of two length-prefixed byte strings,
// bounded by the shorter length; a proper prefix orders first.
int8_t my_strcmp(char *a, int8_t la, char *b, int8_t lb) {
	int8_t n = la < lb ? la : lb;
	for (int8_t i = 0; i < n; i++) {
		if (a[i] < b[i]) {
			return -1;
		}
		if (a[i] > b[i]) {
			return 1;
		}
	}
	if (la < lb) {
		return -1;
	}
	if (la > lb) {
		return 1;
	}
	return 0;
}

int8_t streq(char *a, int8_t la, char *b, int8_t lb) {
	return my_strcmp(a, la, b, lb) == 0;
}

char *skip_byte(char *p) {
	return p + 1;
}

char *skip_bytes(char *p, int8_t n) {
	return p + n;
}

// skip_int - advance past a varint: skip bytes with the continuation bit
// set, then one more.
char *skip_int(char *p) {
	while (*p & 0x80) {
		p++;
	}
	return p + 1;
}

char *skip_checksum(char *p) {
	return p + 4;
}
*/
import "C"

import "unsafe"

// The wrappers below exist for Go callers (tests); JIT'd code calls the C
// symbols directly.

func Putchard(x float64) float64 {
	return float64(C.putchard(C.double(x)))
}

func StrCmp(a, b []byte) int8 {
	return int8(C.my_strcmp(cptr(a), C.int8_t(len(a)), cptr(b), C.int8_t(len(b))))
}

func StrEq(a, b []byte) bool {
	return C.streq(cptr(a), C.int8_t(len(a)), cptr(b), C.int8_t(len(b))) != 0
}

// SkipInt returns how many bytes skip_int advances over buf.
func SkipInt(buf []byte) int {
	p := cptr(buf)
	q := C.skip_int(p)
	return int(uintptr(unsafe.Pointer(q)) - uintptr(unsafe.Pointer(p)))
}

func cptr(b []byte) *C.char {
	if len(b) == 0 {
		b = []byte{0}
	}
	return (*C.char)(unsafe.Pointer(&b[0]))
}

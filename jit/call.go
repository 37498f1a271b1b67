package jit

/*
typedef double (*fn_double)(void);
typedef signed char (*fn_byte)(void);

static double call_double0(void *fp) { return ((fn_double)fp)(); }
static signed char call_byte0(void *fp) { return ((fn_byte)fp)(); }
*/
import "C"

import "unsafe"

// CallDouble0 invokes a resolved symbol as a native double() function.
func CallDouble0(addr uintptr) float64 {
	return float64(C.call_double0(unsafe.Pointer(addr)))
}

// CallByte0 invokes a resolved symbol as a native byte() function.
func CallByte0(addr uintptr) int8 {
	return int8(C.call_byte0(unsafe.Pointer(addr)))
}

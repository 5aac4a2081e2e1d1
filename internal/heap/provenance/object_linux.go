//go:build linux && cgo

package provenance

/*
#cgo LDFLAGS: -ldl

#ifndef _GNU_SOURCE
#define _GNU_SOURCE
#endif
#include <dlfcn.h>
#include <string.h>

// heaptrace_objname writes the owning object's path for addr into buf.
// dladdr fills a Dl_info whose strings point into loader-owned memory; it
// performs no heap allocation, which is the property the tracking path
// depends on. Returns 0 if the address belongs to no loaded object.
static int heaptrace_objname(void *addr, char *buf, int buflen) {
	Dl_info info;
	if (dladdr(addr, &info) == 0 || info.dli_fname == 0) {
		return 0;
	}
	strncpy(buf, info.dli_fname, buflen - 1);
	buf[buflen - 1] = 0;
	return 1;
}
*/
import "C"

import "unsafe"

// objectForPC resolves the shared object owning a foreign program counter.
// The path is copied into a fixed stack buffer; no allocation happens on
// the C side.
func objectForPC(pc uintptr) (string, bool) {
	var buf [512]byte
	ok := C.heaptrace_objname(
		unsafe.Pointer(pc), //nolint:govet // raw PC, not a Go pointer
		(*C.char)(unsafe.Pointer(&buf[0])),
		C.int(len(buf)),
	)
	if ok == 0 {
		return "", false
	}
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n]), true
}

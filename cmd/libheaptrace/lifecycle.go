package main

// Library lifecycle hooks.
//
// The constructor runs when the dynamic linker maps the shim — before
// the target's main, and in practice before its first allocation — and
// primes the tracker so the RTLD_NEXT resolution happens outside any
// user allocation. The destructor fires on library unload, the latest
// point in the process where the registry is still intact, and emits the
// leak report.
//
// This file carries the C definitions; the //export side lives in
// main.go because cgo forbids definitions in a //export file's preamble.

/*
extern void heaptraceInit();
extern void heaptraceFini();

__attribute__((constructor)) static void heaptrace_ctor(void) {
	heaptraceInit();
}

__attribute__((destructor)) static void heaptrace_dtor(void) {
	heaptraceFini();
}
*/
import "C"

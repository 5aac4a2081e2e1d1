// Package report formats and emits the tracker's diagnostics.
//
// Everything goes to standard error through a raw write(2). The corruption
// path runs inside an intercepted free, where the process is by definition
// suspected of heap corruption — buffered or formatted I/O that might
// lazily allocate its own buffers is exactly the wrong tool there. So this
// package formats into fixed-size stack buffers by hand and hands complete
// lines to the kernel.
package report

import (
	"golang.org/x/sys/unix"
)

// write delivers one preformatted chunk to the diagnostic stream. Swapped
// out by tests to capture output; in a preloaded process it is always the
// raw fd-2 write.
var write = func(b []byte) {
	_, _ = unix.Write(2, b)
}

// SetWriterForTesting redirects report output and returns a restore
// function. Test-only; not safe concurrently with live reporting.
func SetWriterForTesting(fn func([]byte)) func() {
	prev := write
	write = fn
	return func() { write = prev }
}

// lineBuf is a fixed-capacity line assembler. Append helpers never grow
// the backing array; a line that would overflow is truncated, which for
// our formats cannot happen with the sizes chosen.
type lineBuf struct {
	b [512]byte
	n int
}

func (l *lineBuf) reset() { l.n = 0 }

func (l *lineBuf) bytes() []byte { return l.b[:l.n] }

func (l *lineBuf) str(s string) {
	for i := 0; i < len(s) && l.n < len(l.b); i++ {
		l.b[l.n] = s[i]
		l.n++
	}
}

// uint formats v in decimal.
func (l *lineBuf) uint(v uint64) {
	var tmp [20]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	for ; i < len(tmp) && l.n < len(l.b); i++ {
		l.b[l.n] = tmp[i]
		l.n++
	}
}

const hexdigits = "0123456789abcdef"

// hex formats v as 0x-prefixed lowercase hex, the shape addresses take
// everywhere in the report.
func (l *lineBuf) hex(v uintptr) {
	l.str("0x")
	var tmp [16]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = hexdigits[v&0xf]
		v >>= 4
		if v == 0 {
			break
		}
	}
	for ; i < len(tmp) && l.n < len(l.b); i++ {
		l.b[l.n] = tmp[i]
		l.n++
	}
}

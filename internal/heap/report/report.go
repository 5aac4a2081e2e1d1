package report

import (
	"runtime"

	"github.com/omrinahum/heaptrace/internal/heap/registry"
	"github.com/omrinahum/heaptrace/internal/heap/stackdepot"
)

// corruptionFrames caps the stack shown with a corruption event. Seven
// frames is enough to see past the interception to the offending free;
// the full 16-frame capture would mostly repeat runtime plumbing.
const corruptionFrames = 7

// Corruption emits one event for a release of an address the registry
// does not own:
//
//	[CORRUPTION] Double-Free or Invalid-Free at 0x55d1a2b04e80
//
// followed, when traces are enabled, by up to corruptionFrames frames of
// the current stack. The event is a single logical report; the real free
// has already been suppressed by the caller.
func Corruption(addr uintptr, frames []uintptr, n int, stacks bool) {
	var l lineBuf
	l.str("[CORRUPTION] Double-Free or Invalid-Free at ")
	l.hex(addr)
	l.str("\n")
	write(l.bytes())

	if !stacks {
		return
	}
	if n > corruptionFrames {
		n = corruptionFrames
	}
	for i := 0; i < n && i < len(frames); i++ {
		writeFrame(&l, frames[i])
	}
}

// writeFrame emits one stack-frame line. The raw return address always
// appears; when the Go runtime can resolve the PC the symbol and source
// position follow, which is as much symbolization as the tracker does
// in-process.
//
//	    0x4a2c15 main.leakOnPurpose /src/demo/main.go:24
func writeFrame(l *lineBuf, pc uintptr) {
	l.reset()
	l.str("    ")
	l.hex(pc)

	// Callers hand us return addresses; the call site is the instruction
	// before. FuncForPC tolerates either but the -1 lands line numbers on
	// the call rather than the return.
	if fn := runtime.FuncForPC(pc - 1); fn != nil {
		file, line := fn.FileLine(pc - 1)
		l.str(" ")
		l.str(fn.Name())
		l.str(" ")
		l.str(file)
		l.str(":")
		l.uint(uint64(line))
	}
	l.str("\n")
	write(l.bytes())
}

// LeakReport writes the shutdown leak section. Emitted once, only when at
// least one record survived to shutdown:
//
//	========== MEMORY LEAKS ==========
//	[LEAK] 0x55d1a2b04e80: 1024 bytes
//	    <frames>
//
//	Summary:
//	  Real leaks: 2 allocation(s), 1536 bytes
//	  Libc infrastructure: 3 allocation(s), 4096 bytes (ignored)
//	==================================
//
// User-class records are itemized; infrastructure records only feed the
// summary, and that line is omitted entirely when there are none.
func LeakReport(user []registry.Record, infraCount, infraBytes uint64, stacks bool) {
	var userBytes uint64
	for i := range user {
		userBytes += user[i].Size
	}
	if len(user) == 0 && infraCount == 0 {
		return
	}

	var l lineBuf
	l.str("\n========== MEMORY LEAKS ==========\n")
	write(l.bytes())

	for i := range user {
		rec := &user[i]
		l.reset()
		l.str("[LEAK] ")
		l.hex(rec.Addr)
		l.str(": ")
		l.uint(rec.Size)
		l.str(" bytes\n")
		write(l.bytes())

		if stacks {
			if st := stackdepot.Get(rec.Stack); st != nil {
				n := st.Len
				if n > corruptionFrames {
					n = corruptionFrames
				}
				for f := 0; f < n; f++ {
					writeFrame(&l, st.PC[f])
				}
			}
		}

		l.reset()
		l.str("\n")
		write(l.bytes())
	}

	l.reset()
	l.str("Summary:\n  Real leaks: ")
	l.uint(uint64(len(user)))
	l.str(" allocation(s), ")
	l.uint(userBytes)
	l.str(" bytes\n")
	write(l.bytes())

	if infraCount > 0 {
		l.reset()
		l.str("  Libc infrastructure: ")
		l.uint(infraCount)
		l.str(" allocation(s), ")
		l.uint(infraBytes)
		l.str(" bytes (ignored)\n")
		write(l.bytes())
	}

	l.reset()
	l.str("==================================\n")
	write(l.bytes())
}

// Skipped emits the one-line diagnostic for an allocation the tracker
// could not record. The user's allocation has already succeeded; the only
// cost is an under-reported leak.
func Skipped(addr uintptr) {
	var l lineBuf
	l.str("[heaptrace] tracking skipped for ")
	l.hex(addr)
	l.str(": no record storage\n")
	write(l.bytes())
}

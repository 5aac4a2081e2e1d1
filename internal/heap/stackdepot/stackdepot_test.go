package stackdepot

import "testing"

func frames(pcs ...uintptr) *[MaxFrames]uintptr {
	var f [MaxFrames]uintptr
	copy(f[:], pcs)
	return &f
}

// TestPutGet stores a stack and reads it back.
func TestPutGet(t *testing.T) {
	Reset()

	h := Put(frames(0x1000, 0x2000, 0x3000), 3)
	if h == 0 {
		t.Fatal("Put returned zero handle for a non-empty stack")
	}

	st := Get(h)
	if st == nil {
		t.Fatal("Get returned nil for valid handle")
	}
	if st.Len != 3 {
		t.Errorf("stored length = %d, want 3", st.Len)
	}
	if st.PC[0] != 0x1000 || st.PC[2] != 0x3000 {
		t.Errorf("stored frames corrupted: %#x", st.PC[:st.Len])
	}
}

// TestDeduplication: identical frame sequences share one entry and one
// handle.
func TestDeduplication(t *testing.T) {
	Reset()

	h1 := Put(frames(0x1000, 0x2000), 2)
	h2 := Put(frames(0x1000, 0x2000), 2)

	if h1 != h2 {
		t.Errorf("identical stacks got different handles: %x != %x", h1, h2)
	}
	if Get(h1) != Get(h2) {
		t.Error("expected the same *Stack for deduplicated handles")
	}
	if n := Len(); n != 1 {
		t.Errorf("depot holds %d stacks after deduplication, want 1", n)
	}
}

// TestLengthDistinguishes: a prefix of a stored stack is a different
// stack.
func TestLengthDistinguishes(t *testing.T) {
	Reset()

	h2 := Put(frames(0x1000, 0x2000, 0x3000), 2)
	h3 := Put(frames(0x1000, 0x2000, 0x3000), 3)

	if h2 == h3 {
		t.Error("stacks of different length must not share a handle")
	}
	if Get(h2).Len != 2 || Get(h3).Len != 3 {
		t.Error("stored lengths do not match the inserted prefixes")
	}
}

// TestEmptyStack: zero frames means handle 0 and a nil lookup.
func TestEmptyStack(t *testing.T) {
	Reset()

	if h := Put(frames(), 0); h != 0 {
		t.Errorf("empty capture got handle %x, want 0", h)
	}
	if Get(0) != nil {
		t.Error("Get(0) must return nil")
	}
}

// TestOverlongCapture is clamped to MaxFrames rather than rejected.
func TestOverlongCapture(t *testing.T) {
	Reset()

	h := Put(frames(0x1000), MaxFrames+5)
	st := Get(h)
	if st == nil {
		t.Fatal("clamped stack not stored")
	}
	if st.Len != MaxFrames {
		t.Errorf("clamped length = %d, want %d", st.Len, MaxFrames)
	}
}

func TestUnknownHandle(t *testing.T) {
	Reset()
	if Get(0xdeadbeef) != nil {
		t.Error("unknown handle must resolve to nil")
	}
}

func TestReset(t *testing.T) {
	Reset()
	Put(frames(0x1000), 1)
	if Len() != 1 {
		t.Fatal("depot empty after Put")
	}
	Reset()
	if Len() != 0 {
		t.Error("Reset left stacks behind")
	}
}

package audio

import (
	"bytes"
	"testing"
)

func TestNewBuffer_Capacity(t *testing.T) {
	// 500ms at 16kHz, 16-bit mono: 500 * 16000 * 2 / 1000 = 16000 bytes
	buf := NewBuffer(500, 16000)

	if buf.Capacity() != 16000 {
		t.Errorf("Expected capacity 16000 bytes, got %d", buf.Capacity())
	}
}

func TestBuffer_PushAndGetAll(t *testing.T) {
	buf := NewBuffer(1000, 16000)

	chunk1 := []byte{1, 2, 3, 4}
	chunk2 := []byte{5, 6, 7, 8}

	buf.Push(chunk1)
	buf.Push(chunk2)

	got := buf.GetAll()
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if !bytes.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	if buf.SizeBytes() != 8 {
		t.Errorf("Expected size 8, got %d", buf.SizeBytes())
	}
}

func TestBuffer_PushCopiesInput(t *testing.T) {
	buf := NewBuffer(1000, 16000)

	chunk := []byte{1, 2, 3, 4}
	buf.Push(chunk)
	chunk[0] = 99

	got := buf.GetAll()
	if got[0] != 1 {
		t.Error("Buffer should hold a copy, not alias the pushed slice")
	}
}

func TestBuffer_EvictsOldestWholeChunks(t *testing.T) {
	// 500ms at 16kHz gives a 16000 byte cap; three 8000 byte pushes must
	// evict the first chunk entirely
	buf := NewBuffer(500, 16000)

	first := make([]byte, 8000)
	for i := range first {
		first[i] = 1
	}
	second := make([]byte, 8000)
	for i := range second {
		second[i] = 2
	}
	third := make([]byte, 8000)
	for i := range third {
		third[i] = 3
	}

	buf.Push(first)
	buf.Push(second)
	buf.Push(third)

	got := buf.GetAll()
	if len(got) != 16000 {
		t.Fatalf("Expected 16000 bytes after eviction, got %d", len(got))
	}
	if got[0] != 2 {
		t.Errorf("Expected oldest surviving byte from second chunk, got %d", got[0])
	}
	if got[len(got)-1] != 3 {
		t.Errorf("Expected newest byte from third chunk, got %d", got[len(got)-1])
	}
}

func TestBuffer_EvictsPartialChunk(t *testing.T) {
	// Cap of 16000 with a 10000 byte chunk resident and 10000 more pushed:
	// the retained content must be exactly the last 16000 bytes pushed
	buf := NewBuffer(500, 16000)

	first := make([]byte, 10000)
	for i := range first {
		first[i] = 1
	}
	second := make([]byte, 10000)
	for i := range second {
		second[i] = 2
	}

	buf.Push(first)
	buf.Push(second)

	got := buf.GetAll()
	if len(got) != 16000 {
		t.Fatalf("Expected 16000 bytes, got %d", len(got))
	}
	// Last 6000 bytes of first chunk survive, then all of second
	for i := 0; i < 6000; i++ {
		if got[i] != 1 {
			t.Fatalf("Byte %d should come from the first chunk, got %d", i, got[i])
		}
	}
	for i := 6000; i < 16000; i++ {
		if got[i] != 2 {
			t.Fatalf("Byte %d should come from the second chunk, got %d", i, got[i])
		}
	}
}

func TestBuffer_OversizedPushKeepsSuffix(t *testing.T) {
	buf := NewBuffer(500, 16000)

	big := make([]byte, 20000)
	for i := range big {
		big[i] = byte(i % 251)
	}
	buf.Push(big)

	got := buf.GetAll()
	if len(got) != 16000 {
		t.Fatalf("Expected 16000 bytes, got %d", len(got))
	}
	if !bytes.Equal(got, big[4000:]) {
		t.Error("Retained bytes should be the suffix of the oversized push")
	}
}

func TestBuffer_SizeMs(t *testing.T) {
	buf := NewBuffer(1000, 16000)

	// 3200 bytes = 1600 samples = 100ms at 16kHz
	buf.Push(make([]byte, 3200))

	if buf.SizeMs() != 100 {
		t.Errorf("Expected 100ms, got %d", buf.SizeMs())
	}
}

func TestBuffer_Clear(t *testing.T) {
	buf := NewBuffer(1000, 16000)
	buf.Push([]byte{1, 2, 3, 4})

	if !buf.HasData() {
		t.Error("Buffer should have data before clear")
	}

	buf.Clear()

	if buf.HasData() {
		t.Error("Buffer should be empty after clear")
	}
	if buf.SizeBytes() != 0 {
		t.Errorf("Expected size 0 after clear, got %d", buf.SizeBytes())
	}
	if len(buf.GetAll()) != 0 {
		t.Error("GetAll should return nothing after clear")
	}
}

func TestBuffer_EmptyPushIgnored(t *testing.T) {
	buf := NewBuffer(1000, 16000)
	buf.Push(nil)
	buf.Push([]byte{})

	if buf.HasData() {
		t.Error("Empty pushes should not add data")
	}
}

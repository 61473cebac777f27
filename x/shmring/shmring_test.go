package shmring

import (
	"bytes"
	"testing"
)

func TestAllOrNothingWrite(t *testing.T) {
	r := New(16)
	if !r.TryWriteAll([]byte("Hello, World!\r\n")) {
		t.Fatal("15 bytes should fit in 16")
	}
	if r.TryWriteAll([]byte("ab")) {
		t.Fatal("2 bytes should not fit in 1")
	}
	if r.Available() != 15 || r.Space() != 1 {
		t.Fatalf("avail=%d space=%d", r.Available(), r.Space())
	}
	dst := make([]byte, 32)
	n := r.ReadInto(dst)
	if !bytes.Equal(dst[:n], []byte("Hello, World!\r\n")) {
		t.Fatalf("got %q", dst[:n])
	}
}

func TestOrderAcrossWrap(t *testing.T) {
	r := New(8)
	var got []byte
	buf := make([]byte, 3)
	for i := 0; i < 200; i++ {
		chunk := []byte{byte(i), byte(i + 1), byte(i + 2)}
		for !r.TryWriteAll(chunk) {
			n := r.ReadInto(buf)
			got = append(got, buf[:n]...)
		}
	}
	for r.Available() > 0 {
		n := r.ReadInto(buf)
		got = append(got, buf[:n]...)
	}
	if len(got) != 600 {
		t.Fatalf("len=%d", len(got))
	}
	for i := 0; i < 200; i++ {
		if got[3*i] != byte(i) || got[3*i+2] != byte(i+2) {
			t.Fatalf("order broken at chunk %d", i)
		}
	}
}

func TestEmptyRead(t *testing.T) {
	r := New(4)
	if n := r.ReadInto(make([]byte, 4)); n != 0 || r.Space() != 4 {
		t.Fatalf("n=%d space=%d", n, r.Space())
	}
	if !r.TryWriteAll(nil) || r.Available() != 0 {
		t.Fatal("empty write")
	}
}

func TestNewPanicsOnBadSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New(12)
}

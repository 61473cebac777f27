// Package shmring is a fixed-size byte ring used as a UART transmit FIFO.
// Indices run freely and wrap through a power-of-two mask. A Ring is not
// safe for concurrent use; callers serialise access.
package shmring

type Ring struct {
	buf    []byte
	mask   uint32
	rd, wr uint32
}

// New panics unless size is a power of two of at least 2.
func New(size int) *Ring {
	if size < 2 || size&(size-1) != 0 {
		panic("shmring: size must be power of two >= 2")
	}
	return &Ring{buf: make([]byte, size), mask: uint32(size - 1)}
}

// Available is the number of queued bytes.
func (r *Ring) Available() int { return int(r.wr - r.rd) }

// Space is the number of bytes that can be queued without overrun.
func (r *Ring) Space() int { return len(r.buf) - r.Available() }

// TryWriteAll queues all of src or nothing, so a frame never straddles an
// overrun.
func (r *Ring) TryWriteAll(src []byte) bool {
	if len(src) > r.Space() {
		return false
	}
	head, tail := r.span(r.wr, len(src))
	n := copy(head, src)
	copy(tail, src[n:])
	r.wr += uint32(len(src))
	return true
}

// ReadInto drains up to len(dst) bytes in FIFO order.
func (r *Ring) ReadInto(dst []byte) int {
	n := min(len(dst), r.Available())
	head, tail := r.span(r.rd, n)
	k := copy(dst, head)
	copy(dst[k:n], tail)
	r.rd += uint32(n)
	return n
}

// span returns the n bytes at index i as up to two contiguous slices.
func (r *Ring) span(i uint32, n int) (head, tail []byte) {
	at := int(i & r.mask)
	if at+n <= len(r.buf) {
		return r.buf[at : at+n], nil
	}
	return r.buf[at:], r.buf[:at+n-len(r.buf)]
}

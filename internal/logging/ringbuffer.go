package logging

import (
	"bytes"
	"os"
	"sync"
)

// RingBuffer keeps the most recent log output in memory so it can be dumped
// when the CLI exits on an unexpected error. It implements io.Writer.
type RingBuffer struct {
	mu   sync.Mutex
	buf  []byte
	pos  int
	full bool
}

func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1024 * 1024
	}
	return &RingBuffer{buf: make([]byte, size)}
}

func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(p)
	size := len(rb.buf)
	if n >= size {
		copy(rb.buf, p[n-size:])
		rb.pos = 0
		rb.full = true
		return n, nil
	}

	written := copy(rb.buf[rb.pos:], p)
	if written < n {
		copy(rb.buf, p[written:])
		rb.pos = n - written
		rb.full = true
	} else {
		rb.pos += written
		if rb.pos == size {
			rb.pos = 0
			rb.full = true
		}
	}
	return n, nil
}

// Bytes returns the contents oldest first.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.full {
		return append([]byte(nil), rb.buf[:rb.pos]...)
	}
	out := make([]byte, 0, len(rb.buf))
	out = append(out, rb.buf[rb.pos:]...)
	return append(out, rb.buf[:rb.pos]...)
}

// Lines returns complete log lines, dropping the partial line left at the
// front once the buffer has wrapped.
func (rb *RingBuffer) Lines() []byte {
	data := rb.Bytes()
	rb.mu.Lock()
	wrapped := rb.full
	rb.mu.Unlock()
	if wrapped {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			data = data[i+1:]
		}
	}
	return data
}

// DumpToFile writes Lines to path.
func (rb *RingBuffer) DumpToFile(path string) error {
	return os.WriteFile(path, rb.Lines(), 0o644)
}

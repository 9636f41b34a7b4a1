package index

import "bytes"

// ndjsonBuilder emits one entry per non-blank line. The terminator, including
// a '\r' before '\n', is not part of the record.
type ndjsonBuilder struct {
	entries []Entry
	start   int64
	content bool
	lastCR  bool
}

func (b *ndjsonBuilder) skip(n int64) { b.start = n }

func (b *ndjsonBuilder) feed(chunk []byte, base int64) error {
	if base < b.start {
		d := b.start - base
		if d >= int64(len(chunk)) {
			return nil
		}
		chunk, base = chunk[d:], b.start
	}
	for len(chunk) > 0 {
		nl := bytes.IndexByte(chunk, '\n')
		seg := chunk
		if nl >= 0 {
			seg = chunk[:nl]
		}
		if len(seg) > 0 {
			if !b.content && len(bytes.TrimLeft(seg, " \t\r")) > 0 {
				b.content = true
			}
			b.lastCR = seg[len(seg)-1] == '\r'
		}
		if nl < 0 {
			return nil
		}
		end := base + int64(nl)
		if err := b.emit(end); err != nil {
			return err
		}
		b.start = end + 1
		chunk = chunk[nl+1:]
		base = end + 1
	}
	return nil
}

func (b *ndjsonBuilder) emit(end int64) error {
	defer func() { b.content, b.lastCR = false, false }()
	if !b.content {
		return nil
	}
	if b.lastCR {
		end--
	}
	e, err := makeEntry(b.start, end)
	if err != nil {
		return err
	}
	b.entries = append(b.entries, e)
	return nil
}

func (b *ndjsonBuilder) finish(size int64) ([]Entry, error) {
	if b.start < size {
		if err := b.emit(size); err != nil {
			return nil, err
		}
	}
	return b.entries, nil
}

type arrayPhase int

const (
	beforeOpen arrayPhase = iota
	inArray
	afterClose
)

// arrayBuilder tracks quote and bracket nesting to find the commas that
// separate top-level elements. Element bytes exclude surrounding whitespace.
type arrayBuilder struct {
	entries   []Entry
	phase     arrayPhase
	skipTo    int64
	stack     []byte
	inString  bool
	escaped   bool
	elemStart int64
	lastByte  int64
	comma     bool
}

func (b *arrayBuilder) skip(n int64) { b.skipTo = n }

func (b *arrayBuilder) feed(chunk []byte, base int64) error {
	for i, c := range chunk {
		pos := base + int64(i)
		if pos < b.skipTo {
			continue
		}

		switch b.phase {
		case beforeOpen:
			if isSpace(c) {
				continue
			}
			if c != '[' {
				return malformed(pos, "expected top-level array")
			}
			b.phase = inArray
			continue
		case afterClose:
			if !isSpace(c) {
				return malformed(pos, "unexpected data after array")
			}
			continue
		}

		if b.inString {
			switch {
			case b.escaped:
				b.escaped = false
			case c == '\\':
				b.escaped = true
			case c == '"':
				b.inString = false
			}
			b.lastByte = pos
			continue
		}
		if isSpace(c) {
			continue
		}

		if len(b.stack) == 0 {
			switch c {
			case ',':
				if b.elemStart < 0 {
					return malformed(pos, "empty array element")
				}
				if err := b.emit(); err != nil {
					return err
				}
				b.comma = true
				continue
			case ']':
				if b.elemStart >= 0 {
					if err := b.emit(); err != nil {
						return err
					}
				} else if b.comma {
					return malformed(pos, "trailing comma")
				}
				b.phase = afterClose
				continue
			case '}':
				return malformed(pos, "unbalanced '}'")
			}
			if b.elemStart < 0 {
				b.elemStart = pos
			}
		}

		switch c {
		case '"':
			b.inString = true
		case '{', '[':
			b.stack = append(b.stack, c)
		case '}', ']':
			open := b.stack[len(b.stack)-1]
			if (c == '}') != (open == '{') {
				return malformed(pos, "mismatched bracket")
			}
			b.stack = b.stack[:len(b.stack)-1]
		}
		b.lastByte = pos
	}
	return nil
}

func (b *arrayBuilder) emit() error {
	e, err := makeEntry(b.elemStart, b.lastByte+1)
	if err != nil {
		return err
	}
	b.entries = append(b.entries, e)
	b.elemStart = -1
	b.comma = false
	return nil
}

func (b *arrayBuilder) finish(size int64) ([]Entry, error) {
	switch {
	case b.phase == beforeOpen:
		return nil, malformed(size, "expected top-level array")
	case b.inString:
		return nil, malformed(size, "unterminated string")
	case b.phase != afterClose:
		return nil, malformed(size, "unterminated array")
	}
	return b.entries, nil
}

// singleBuilder treats the whole file, minus leading and trailing
// whitespace, as one record.
type singleBuilder struct {
	skipTo int64
	first  int64
	last   int64
}

func (b *singleBuilder) skip(n int64) { b.skipTo = n }

func (b *singleBuilder) feed(chunk []byte, base int64) error {
	for i, c := range chunk {
		pos := base + int64(i)
		if pos < b.skipTo || isSpace(c) {
			continue
		}
		if b.first < 0 {
			b.first = pos
		}
		b.last = pos
	}
	return nil
}

func (b *singleBuilder) finish(int64) ([]Entry, error) {
	if b.first < 0 {
		return nil, nil
	}
	e, err := makeEntry(b.first, b.last+1)
	if err != nil {
		return nil, err
	}
	return []Entry{e}, nil
}

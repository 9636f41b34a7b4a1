// Package index computes record boundaries for NDJSON, JSON array and single
// value files in one streaming pass, without parsing record contents.
package index

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/thoth-viewer/thoth/internal/logging"
)

var indexLog = logging.ForComponent(logging.CompIndex)

var (
	// ErrMalformedStructure means the file cannot be partitioned into records,
	// e.g. unbalanced brackets or quotes in an array file.
	ErrMalformedStructure = errors.New("malformed structure")

	// ErrRecordTooLarge means a record does not fit the 32-bit length field.
	ErrRecordTooLarge = errors.New("record too large")
)

const (
	chunkSize = 1 << 20
	// sniffLimit bounds how much of one line detection keeps in memory for
	// full validation.
	sniffLimit = 64 << 10
)

// Entry is the byte range of one record.
type Entry struct {
	Offset uint64
	Length uint32
}

// End returns the offset one past the last byte of the record.
func (e Entry) End() uint64 { return e.Offset + uint64(e.Length) }

// Index is an immutable table of record boundaries in file order.
type Index struct {
	shape   Shape
	entries []Entry
	size    int64
}

func (ix *Index) Len() int     { return len(ix.entries) }
func (ix *Index) Shape() Shape { return ix.shape }

// Size is the number of bytes consumed while indexing.
func (ix *Index) Size() int64 { return ix.size }

// Entry returns the boundaries of record i.
func (ix *Index) Entry(i int) (Entry, bool) {
	if i < 0 || i >= len(ix.entries) {
		return Entry{}, false
	}
	return ix.entries[i], true
}

// Entries returns the underlying table. Callers must not modify it.
func (ix *Index) Entries() []Entry { return ix.entries }

// BuildFile indexes the file at path.
func BuildFile(path string, shape Shape) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}
	defer f.Close()
	return Build(f, shape)
}

// Build reads r to EOF and partitions it according to shape. ShapeAuto sniffs
// the leading bytes first.
func Build(r io.Reader, shape Shape) (*Index, error) {
	start := time.Now()
	br := bufio.NewReaderSize(r, chunkSize)

	if shape == ShapeAuto {
		var err error
		shape, br, err = sniff(r, br)
		if err != nil {
			return nil, err
		}
	}

	var b builder
	switch shape {
	case ShapeNDJSON:
		b = &ndjsonBuilder{}
	case ShapeArray:
		b = &arrayBuilder{elemStart: -1}
	case ShapeSingle:
		b = &singleBuilder{first: -1}
	default:
		return nil, fmt.Errorf("index: unsupported shape %v", shape)
	}

	var pos int64
	buf := make([]byte, chunkSize)
	for {
		n, err := br.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if pos == 0 && len(chunk) >= len(bom) && string(chunk[:len(bom)]) == string(bom) {
				b.skip(int64(len(bom)))
			}
			if ferr := b.feed(chunk, pos); ferr != nil {
				return nil, ferr
			}
			pos += int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("index: read at %d: %w", pos, err)
		}
	}

	entries, err := b.finish(pos)
	if err != nil {
		return nil, err
	}

	ix := &Index{shape: shape, entries: entries, size: pos}
	indexLog.Info("index_built",
		slog.String("shape", shape.String()),
		slog.Int("records", len(entries)),
		slog.Int64("bytes", pos),
		slog.Duration("elapsed", time.Since(start)))
	return ix, nil
}

// sniff detects the shape and returns a reader positioned back at the start
// of the file. Seekable inputs are rewound; anything else replays the bytes
// the detection consumed.
func sniff(r io.Reader, br *bufio.Reader) (Shape, *bufio.Reader, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		shape, err := detect(br, true, nil)
		if err != nil {
			return ShapeAuto, nil, err
		}
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return ShapeAuto, nil, fmt.Errorf("index: rewind: %w", err)
		}
		return shape, bufio.NewReaderSize(rs, chunkSize), nil
	}

	var consumed bytes.Buffer
	shape, err := detect(br, true, &consumed)
	if err != nil {
		return ShapeAuto, nil, err
	}
	return shape, bufio.NewReaderSize(io.MultiReader(&consumed, br), chunkSize), nil
}

type builder interface {
	// skip marks the first n bytes of the file as not belonging to any record.
	skip(n int64)
	feed(chunk []byte, base int64) error
	finish(size int64) ([]Entry, error)
}

func makeEntry(start, end int64) (Entry, error) {
	n := end - start
	if n > math.MaxUint32 {
		return Entry{}, fmt.Errorf("index: record at offset %d is %d bytes: %w", start, n, ErrRecordTooLarge)
	}
	return Entry{Offset: uint64(start), Length: uint32(n)}, nil
}

func malformed(pos int64, reason string) error {
	return fmt.Errorf("index: %s at offset %d: %w", reason, pos, ErrMalformedStructure)
}

package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// maxFrameSize bounds a single frame so a corrupt length cannot trigger a
// huge allocation.
const maxFrameSize = 16 << 20

// Reader reads WAL entries across all segments in order.
//
// A segment with a bad header is skipped. Within a segment, reading stops
// at the first torn or corrupt frame; that is where a crash cut the
// segment short.
type Reader struct {
	segments []segmentInfo
	segIndex int

	file   *os.File
	reader *bufio.Reader

	// Truncated counts segments whose tail could not be decoded.
	Truncated int
}

// NewReader creates a reader over the segments currently in dir.
func NewReader(dir string) (*Reader, error) {
	segs, err := listSegments(dir)
	if err != nil {
		return nil, err
	}
	return &Reader{segments: segs}, nil
}

// Read returns the next entry, or io.EOF after the last segment.
func (r *Reader) Read() (*Entry, error) {
	for {
		if r.reader == nil {
			if err := r.openNextSegment(); err != nil {
				return nil, err
			}
			continue
		}

		e, err := r.readOneEntry()
		if err == nil {
			return e, nil
		}

		if !errors.Is(err, io.EOF) {
			r.Truncated++
		}
		r.closeCurrent()
	}
}

// ReadAll reads all entries from the WAL.
func (r *Reader) ReadAll() ([]*Entry, error) {
	var out []*Entry
	for {
		e, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		out = append(out, e)
	}
}

// Close closes any open segment file.
func (r *Reader) Close() error {
	return r.closeCurrent()
}

func (r *Reader) openNextSegment() error {
	for r.segIndex < len(r.segments) {
		seg := r.segments[r.segIndex]
		r.segIndex++

		f, err := os.Open(seg.path)
		if err != nil {
			return fmt.Errorf("wal: open %s: %w", seg.path, err)
		}
		stat, err := f.Stat()
		if err != nil {
			f.Close()
			return fmt.Errorf("wal: stat %s: %w", seg.path, err)
		}

		_, dataLen, err := finalized(f, stat.Size())
		if err != nil {
			f.Close()
			if errors.Is(err, errInvalidMagic) {
				r.Truncated++
				continue
			}
			return err
		}

		r.file = f
		r.reader = bufio.NewReader(io.NewSectionReader(f, MagicBytesSize, dataLen-MagicBytesSize))
		return nil
	}
	return io.EOF
}

func (r *Reader) closeCurrent() error {
	r.reader = nil
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

func (r *Reader) readOneEntry() (*Entry, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.reader, lenBuf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrCorruptedEntry
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length < 5 || length > maxFrameSize {
		return nil, ErrCorruptedEntry
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r.reader, frame); err != nil {
		return nil, ErrCorruptedEntry
	}
	return decodeEntryFrame(frame)
}

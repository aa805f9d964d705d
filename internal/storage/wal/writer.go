package wal

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var errInvalidMagic = errors.New("wal: invalid magic bytes")

// File format constants.
const (
	FilePrefix      = "wal-"
	FileExtension   = ".log"
	MagicBytes      = "ACLGWAL\x01"
	MagicBytesSize  = 8
	ChecksumSize    = 32
	DefaultFilePerm = 0600
	DefaultDirPerm  = 0750
)

// Default configuration values.
const (
	DefaultSyncInterval       = 100 * time.Millisecond
	DefaultMaxFileSize  int64 = 16 << 20 // 16MB
)

// SyncMode defines how WAL syncs to disk.
type SyncMode string

const (
	// SyncModeSync fsyncs before Append returns.
	SyncModeSync SyncMode = "sync"
	// SyncModeBatch buffers frames and fsyncs every SyncInterval. A crash
	// can lose the last interval of intents.
	SyncModeBatch SyncMode = "batch"
)

// ParseSyncMode validates a sync mode string.
func ParseSyncMode(s string) (SyncMode, error) {
	switch SyncMode(s) {
	case SyncModeSync, SyncModeBatch:
		return SyncMode(s), nil
	case "":
		return SyncModeSync, nil
	}
	return "", fmt.Errorf("wal: unknown sync mode %q", s)
}

// Config configures the WAL writer.
type Config struct {
	Dir string

	SyncMode     SyncMode
	SyncInterval time.Duration

	MaxFileSize int64
}

// DefaultConfig returns the default WAL configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:          dir,
		SyncMode:     SyncModeSync,
		SyncInterval: DefaultSyncInterval,
		MaxFileSize:  DefaultMaxFileSize,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.SyncMode == "" {
		cfg.SyncMode = SyncModeSync
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
}

// Writer appends entries to WAL segment files.
//
// Every Writer starts a fresh segment; an unfinalized segment left by a
// crash is never appended to, so a torn tail frame cannot hide later ones.
type Writer struct {
	cfg Config

	mu sync.Mutex

	segmentID uint64
	file      *os.File
	buf       *bufio.Writer
	fileSize  int64
	hash      hash.Hash
	dirty     bool

	stopCh chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// NewWriter creates a WAL writer on a new segment after the latest one in
// cfg.Dir.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("wal: dir is required")
	}
	if _, err := ParseSyncMode(string(cfg.SyncMode)); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("wal: create dir: %w", err)
	}
	applyDefaults(&cfg)

	segs, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	var latest uint64
	if len(segs) > 0 {
		latest = segs[len(segs)-1].id
	}

	w := &Writer{
		cfg:       cfg,
		segmentID: latest + 1,
		stopCh:    make(chan struct{}),
	}
	if err := w.openSegmentLocked(); err != nil {
		return nil, err
	}

	if cfg.SyncMode == SyncModeBatch {
		w.wg.Add(1)
		go w.syncLoop()
	}
	return w, nil
}

// Append writes an entry. In sync mode it is durable when Append returns.
func (w *Writer) Append(entry *Entry) error {
	frame, err := encodeEntryFrame(entry)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	if w.fileSize > MagicBytesSize && w.fileSize+int64(len(frame)) > w.cfg.MaxFileSize {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}

	if err := w.writeLocked(frame); err != nil {
		return fmt.Errorf("wal: append %s: %w", entry.OpType, err)
	}

	if w.cfg.SyncMode == SyncModeSync {
		return w.syncLocked()
	}
	w.dirty = true
	return nil
}

// Flush writes buffered frames and fsyncs the active segment.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.syncLocked()
}

// Rotate finalizes the active segment and starts a new one. It returns the
// id of the new segment; every older segment is closed.
func (w *Writer) Rotate() (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}
	if err := w.rotateLocked(); err != nil {
		return 0, err
	}
	return w.segmentID, nil
}

// SegmentID returns the id of the active segment.
func (w *Writer) SegmentID() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.segmentID
}

// Dir returns the WAL directory.
func (w *Writer) Dir() string {
	return w.cfg.Dir
}

// Close flushes pending frames and finalizes the active segment.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finalizeLocked()
}

func (w *Writer) syncLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.mu.Lock()
			if w.dirty && !w.closed {
				_ = w.syncLocked()
			}
			w.mu.Unlock()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Writer) openSegmentLocked() error {
	path := filepath.Join(w.cfg.Dir, formatSegmentFilename(w.segmentID))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("wal: open segment: %w", err)
	}

	w.file = file
	w.buf = bufio.NewWriter(file)
	w.fileSize = 0
	w.hash = sha256.New()

	if err := w.writeLocked([]byte(MagicBytes)); err != nil {
		file.Close()
		return fmt.Errorf("wal: write magic: %w", err)
	}
	return w.syncLocked()
}

func (w *Writer) writeLocked(p []byte) error {
	n, err := w.buf.Write(p)
	if n > 0 {
		w.hash.Write(p[:n])
		w.fileSize += int64(n)
	}
	return err
}

func (w *Writer) syncLocked() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: sync: %w", err)
	}
	w.dirty = false
	return nil
}

func (w *Writer) rotateLocked() error {
	if err := w.finalizeLocked(); err != nil {
		return err
	}
	w.segmentID++
	return w.openSegmentLocked()
}

func (w *Writer) finalizeLocked() error {
	if w.file == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if _, err := w.file.Write(w.hash.Sum(nil)); err != nil {
		return fmt.Errorf("wal: write checksum: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: sync: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("wal: close: %w", err)
	}
	w.file = nil
	w.buf = nil
	return nil
}

type segmentInfo struct {
	id   uint64
	path string
}

func formatSegmentFilename(segmentID uint64) string {
	return fmt.Sprintf("%s%08d%s", FilePrefix, segmentID, FileExtension)
}

func parseSegmentFilename(name string) (uint64, bool) {
	if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileExtension) {
		return 0, false
	}
	var id uint64
	_, err := fmt.Sscanf(name, FilePrefix+"%d"+FileExtension, &id)
	return id, err == nil
}

// listSegments returns the segment files in dir, oldest first.
func listSegments(dir string) ([]segmentInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("wal: read dir: %w", err)
	}

	var segs []segmentInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := parseSegmentFilename(e.Name())
		if !ok {
			continue
		}
		segs = append(segs, segmentInfo{id: id, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].id < segs[j].id })
	return segs, nil
}

// finalized reports whether f ends with a valid checksum trailer and
// returns the length of the data before it.
func finalized(f *os.File, size int64) (bool, int64, error) {
	magic := make([]byte, MagicBytesSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, MagicBytesSize), magic); err != nil {
		return false, 0, errInvalidMagic
	}
	if string(magic) != MagicBytes {
		return false, 0, errInvalidMagic
	}
	if size < MagicBytesSize+ChecksumSize {
		return false, size, nil
	}

	trailer := make([]byte, ChecksumSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, size-ChecksumSize, ChecksumSize), trailer); err != nil {
		return false, 0, fmt.Errorf("wal: read checksum trailer: %w", err)
	}

	h := sha256.New()
	dataLen := size - ChecksumSize
	if _, err := io.Copy(h, io.NewSectionReader(f, 0, dataLen)); err != nil {
		return false, 0, fmt.Errorf("wal: hash: %w", err)
	}
	if !bytes.Equal(h.Sum(nil), trailer) {
		return false, size, nil
	}
	return true, dataLen, nil
}

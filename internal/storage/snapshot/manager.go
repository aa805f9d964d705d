package snapshot

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/acctledger/internal/core/domain"
)

// Magic bytes identify snapshot files.
var magicBytes = []byte("ACLGSNAP")

const (
	filePrefix    = "backup-"
	fileExtension = ".snap"
	checksumSize  = 32
	headerVersion = 1

	// Section size limits for reads from disk.
	maxHeaderSize = 64 << 10
	maxDataSize   = 1 << 30

	DefaultRetentionCount = 5
)

type snapshotHeader struct {
	Version      int    `json:"version"`
	CreatedAt    int64  `json:"created_at"`
	AccountCount uint64 `json:"account_count"`
	AliasHash    string `json:"alias_hash,omitempty"`
}

var (
	ErrInvalidMagic     = errors.New("snapshot: invalid magic bytes")
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
	ErrNotFound         = errors.New("snapshot: not found")
	ErrNoSnapshots      = errors.New("snapshot: no snapshots available")
)

// Config configures the snapshot manager.
type Config struct {
	Dir string

	// RetentionCount is the number of snapshots Prune keeps.
	RetentionCount int

	// AliasHash names the alias hash in effect, recorded in the header.
	AliasHash string
}

// DefaultConfig returns the default snapshot configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		RetentionCount: DefaultRetentionCount,
	}
}

// Manager creates, lists and loads snapshots in one directory.
type Manager struct {
	cfg Config
}

// NewManager creates the snapshot directory if needed.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("snapshot: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	if cfg.RetentionCount <= 0 {
		cfg.RetentionCount = DefaultRetentionCount
	}
	return &Manager{cfg: cfg}, nil
}

// Info contains metadata about a snapshot.
type Info struct {
	ID           string `json:"id" yaml:"id"`
	AccountCount int64  `json:"account_count" yaml:"account_count"`
	CreatedAt    int64  `json:"created_at" yaml:"created_at" table:"unixms"`
	Size         int64  `json:"size" yaml:"size"`
	Path         string `json:"path" yaml:"path" table:"wide"`
	Checksum     string `json:"checksum,omitempty" yaml:"checksum,omitempty" table:"wide"`
	AliasHash    string `json:"alias_hash,omitempty" yaml:"alias_hash,omitempty"`
}

// Create writes a snapshot of the given accounts.
func (m *Manager) Create(accounts []*domain.Account) (*Info, error) {
	now := time.Now()
	id := filePrefix + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()

	hdrJSON, err := json.Marshal(snapshotHeader{
		Version:      headerVersion,
		CreatedAt:    now.UnixMilli(),
		AccountCount: uint64(len(accounts)),
		AliasHash:    m.cfg.AliasHash,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal header: %w", err)
	}
	data, err := json.Marshal(accounts)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal accounts: %w", err)
	}

	tempPath := filepath.Join(m.cfg.Dir, id+".tmp")
	file, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("snapshot: create temp file: %w", err)
	}
	defer os.Remove(tempPath)

	hash := sha256.New()
	w := bufio.NewWriter(io.MultiWriter(file, hash))

	w.Write(magicBytes)
	writeSection(w, hdrJSON)
	writeSection(w, data)
	if err := w.Flush(); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: write: %w", err)
	}

	// Checksum trailer is not part of the hash.
	sum := hash.Sum(nil)
	if _, err := file.Write(sum); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: write checksum: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: close: %w", err)
	}

	stat, err := os.Stat(tempPath)
	if err != nil {
		return nil, err
	}

	finalPath := filepath.Join(m.cfg.Dir, id+fileExtension)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return nil, fmt.Errorf("snapshot: rename: %w", err)
	}

	return &Info{
		ID:           id,
		AccountCount: int64(len(accounts)),
		CreatedAt:    now.UnixMilli(),
		Size:         stat.Size(),
		Path:         finalPath,
		Checksum:     hex.EncodeToString(sum),
		AliasHash:    m.cfg.AliasHash,
	}, nil
}

// Load loads accounts from the latest valid snapshot.
// If the latest snapshot is corrupted, it falls back to older snapshots.
func (m *Manager) Load() ([]*domain.Account, *Info, error) {
	snapshots, err := m.List()
	if err != nil {
		return nil, nil, err
	}

	for i := len(snapshots) - 1; i >= 0; i-- {
		accounts, info, err := LoadFile(snapshots[i].Path)
		if err == nil {
			return accounts, info, nil
		}
		if errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrInvalidMagic) {
			continue
		}
		return nil, nil, err
	}
	return nil, nil, ErrNoSnapshots
}

// Path resolves a snapshot id, or a path to a snapshot file, to a path.
func (m *Manager) Path(idOrPath string) (string, error) {
	if strings.ContainsAny(idOrPath, `/\`) {
		if _, err := os.Stat(idOrPath); err != nil {
			return "", fmt.Errorf("%w: %s", ErrNotFound, idOrPath)
		}
		return idOrPath, nil
	}

	path := filepath.Join(m.cfg.Dir, strings.TrimSuffix(idOrPath, fileExtension)+fileExtension)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, idOrPath)
	}
	return path, nil
}

// LoadFile reads and verifies one snapshot file.
func LoadFile(path string) ([]*domain.Account, *Info, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	if stat.Size() < int64(len(magicBytes))+checksumSize {
		return nil, nil, ErrChecksumMismatch
	}

	dataLen := stat.Size() - checksumSize
	expected := make([]byte, checksumSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, dataLen, checksumSize), expected); err != nil {
		return nil, nil, err
	}
	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(f, 0, dataLen)); err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(h.Sum(nil), expected) {
		return nil, nil, ErrChecksumMismatch
	}

	br := bufio.NewReader(io.NewSectionReader(f, 0, dataLen))
	hdr, err := readHeader(br)
	if err != nil {
		return nil, nil, err
	}

	data, err := readSection(br, maxDataSize)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: read data: %w", err)
	}
	var accounts []*domain.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, nil, fmt.Errorf("snapshot: unmarshal accounts: %w", err)
	}
	if uint64(len(accounts)) != hdr.AccountCount {
		return nil, nil, fmt.Errorf("snapshot: header says %d accounts, found %d", hdr.AccountCount, len(accounts))
	}

	return accounts, &Info{
		ID:           strings.TrimSuffix(filepath.Base(path), fileExtension),
		AccountCount: int64(hdr.AccountCount),
		CreatedAt:    hdr.CreatedAt,
		Size:         stat.Size(),
		Path:         path,
		Checksum:     hex.EncodeToString(expected),
		AliasHash:    hdr.AliasHash,
	}, nil
}

// List lists snapshot files, oldest first. Header fields are filled in
// when readable; checksums are not verified.
func (m *Manager) List() ([]*Info, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileExtension) {
			paths = append(paths, filepath.Join(m.cfg.Dir, name))
		}
	}
	sort.Strings(paths)

	infos := make([]*Info, 0, len(paths))
	for _, p := range paths {
		stat, err := os.Stat(p)
		if err != nil {
			continue
		}
		info := &Info{
			ID:   strings.TrimSuffix(filepath.Base(p), fileExtension),
			Path: p,
			Size: stat.Size(),
		}
		if hdr, err := peekHeader(p); err == nil {
			info.AccountCount = int64(hdr.AccountCount)
			info.CreatedAt = hdr.CreatedAt
			info.AliasHash = hdr.AliasHash
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Prune keeps the newest RetentionCount snapshots and deletes the rest.
// It returns the number of files removed.
func (m *Manager) Prune() (int, error) {
	infos, err := m.List()
	if err != nil {
		return 0, err
	}
	if len(infos) <= m.cfg.RetentionCount {
		return 0, nil
	}

	var errs []error
	removed := 0
	for _, info := range infos[:len(infos)-m.cfg.RetentionCount] {
		if err := os.Remove(info.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func writeSection(w io.Writer, p []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(p)))
	w.Write(n[:])
	w.Write(p)
}

func readSection(r io.Reader, limit uint32) ([]byte, error) {
	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(n[:])
	if size > limit {
		return nil, fmt.Errorf("snapshot: section of %d bytes exceeds limit", size)
	}
	p := make([]byte, size)
	if _, err := io.ReadFull(r, p); err != nil {
		return nil, err
	}
	return p, nil
}

func readHeader(r io.Reader) (*snapshotHeader, error) {
	magic := make([]byte, len(magicBytes))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, magicBytes) {
		return nil, ErrInvalidMagic
	}

	hdrJSON, err := readSection(r, maxHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read header: %w", err)
	}
	var hdr snapshotHeader
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal header: %w", err)
	}
	if hdr.Version != headerVersion {
		return nil, fmt.Errorf("snapshot: unsupported header version %d", hdr.Version)
	}
	return &hdr, nil
}

func peekHeader(path string) (*snapshotHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readHeader(bufio.NewReader(f))
}

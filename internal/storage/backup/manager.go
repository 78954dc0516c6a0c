package backup

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

	"github.com/norlun/tokengate-go/internal/core/domain"
)

// Magic bytes identify backup archives.
var magicBytes = []byte("TGBACKUP")

const (
	filePrefix    = "backup-"
	fileExtension = ".bak"
	checksumSize  = 32
	headerVersion = 1

	// maxHeaderSize bounds the header allocation when reading a
	// damaged length field.
	maxHeaderSize = 1 << 16

	DefaultRetentionCount = 5
	DefaultRetentionDays  = 7
)

var (
	ErrInvalidMagic     = errors.New("backup: not a backup archive")
	ErrChecksumMismatch = errors.New("backup: checksum mismatch")
	ErrNotFound         = errors.New("backup: archive not found")
	ErrNoArchives       = errors.New("backup: no archives available")
)

type archiveHeader struct {
	Version     int    `json:"version"`
	CreatedAt   int64  `json:"created_at"`
	Store       string `json:"store,omitempty"`
	RecordCount uint64 `json:"record_count"`
	Encrypted   bool   `json:"encrypted"`
	Algorithm   string `json:"algorithm,omitempty"`
	Salt        string `json:"salt,omitempty"`
}

// archiveRecord is the on-disk record shape, decoupled from the
// domain struct so old archives stay readable when the domain grows.
type archiveRecord struct {
	Token      string          `json:"token"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ModifiedAt int64           `json:"modified_at"`
}

func fromDomain(rec *domain.TokenRecord) archiveRecord {
	return archiveRecord{
		Token:      rec.Token,
		Payload:    rec.Payload,
		ModifiedAt: rec.ModifiedAt,
	}
}

func (r archiveRecord) toDomain() *domain.TokenRecord {
	return &domain.TokenRecord{
		Token:      r.Token,
		Payload:    r.Payload,
		ModifiedAt: r.ModifiedAt,
	}
}

// Config configures the backup manager.
type Config struct {
	// Dir is where archives live.
	Dir string

	// RetentionCount and RetentionDays drive Prune. Zero values take
	// the defaults; negative values disable that dimension.
	RetentionCount int
	RetentionDays  int

	// Encryption selects the archive key material. The zero value
	// writes and expects plaintext archives.
	Encryption EncryptionConfig

	// Store is the backend label recorded in archive headers.
	Store string
}

// DefaultConfig returns a plaintext config with default retention.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		RetentionCount: DefaultRetentionCount,
		RetentionDays:  DefaultRetentionDays,
	}
}

// Manager reads and writes archives in one directory.
type Manager struct {
	cfg Config
}

// NewManager validates the config and creates the archive directory.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("backup: dir is required")
	}
	if err := ValidateConfig(cfg.Encryption); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("backup: create dir: %w", err)
	}
	if cfg.RetentionCount == 0 {
		cfg.RetentionCount = DefaultRetentionCount
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}
	return &Manager{cfg: cfg}, nil
}

// Info describes one archive.
type Info struct {
	ID          string `json:"id"`
	RecordCount int64  `json:"record_count"`
	CreatedAt   int64  `json:"created_at"`
	Size        int64  `json:"size"`
	Path        string `json:"path"`
	Checksum    string `json:"checksum,omitempty"`
	Store       string `json:"store,omitempty"`
	Encrypted   bool   `json:"encrypted"`
}

// Create writes a new archive holding the given records and returns
// its metadata.
func (m *Manager) Create(records []*domain.TokenRecord) (*Info, error) {
	now := time.Now()
	id := m.generateID(now)

	encoded := make([]archiveRecord, 0, len(records))
	for _, rec := range records {
		encoded = append(encoded, fromDomain(rec))
	}
	data, err := json.Marshal(encoded)
	if err != nil {
		return nil, fmt.Errorf("backup: marshal records: %w", err)
	}

	cipher, salt, err := NewCipher(m.cfg.Encryption)
	if err != nil {
		return nil, err
	}

	hdr := archiveHeader{
		Version:     headerVersion,
		CreatedAt:   now.UnixMilli(),
		Store:       m.cfg.Store,
		RecordCount: uint64(len(records)),
		Encrypted:   cipher != nil,
	}
	if cipher != nil {
		hdr.Algorithm = m.cfg.Encryption.Algorithm
		if hdr.Algorithm == "" {
			hdr.Algorithm = "aes-gcm"
		}
		if len(salt) > 0 {
			hdr.Salt = hex.EncodeToString(salt)
		}
	}
	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("backup: marshal header: %w", err)
	}

	// The header JSON doubles as AEAD additional data, binding the
	// record block to this exact header.
	if cipher != nil {
		data, err = cipher.Encrypt(data, hdrJSON)
		if err != nil {
			return nil, fmt.Errorf("backup: encrypt: %w", err)
		}
	}

	path := filepath.Join(m.cfg.Dir, id+fileExtension)
	size, sum, err := writeArchive(path, hdrJSON, data)
	if err != nil {
		return nil, err
	}

	return &Info{
		ID:          id,
		RecordCount: int64(len(records)),
		CreatedAt:   hdr.CreatedAt,
		Size:        size,
		Path:        path,
		Checksum:    hex.EncodeToString(sum),
		Store:       m.cfg.Store,
		Encrypted:   hdr.Encrypted,
	}, nil
}

// writeArchive writes magic, length-prefixed header and data blocks,
// and the checksum trailer to a temp file, then renames it into place.
func writeArchive(path string, hdrJSON, data []byte) (int64, []byte, error) {
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return 0, nil, fmt.Errorf("backup: create temp file: %w", err)
	}
	defer func() {
		file.Close()
		os.Remove(tempPath)
	}()

	hash := sha256.New()
	w := io.MultiWriter(file, hash)

	var lenBuf [4]byte
	if _, err := w.Write(magicBytes); err != nil {
		return 0, nil, fmt.Errorf("backup: write magic: %w", err)
	}
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(hdrJSON)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("backup: write header length: %w", err)
	}
	if _, err := w.Write(hdrJSON); err != nil {
		return 0, nil, fmt.Errorf("backup: write header: %w", err)
	}
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("backup: write data length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return 0, nil, fmt.Errorf("backup: write data: %w", err)
	}

	// The trailer itself is not part of the hash.
	sum := hash.Sum(nil)
	if _, err := file.Write(sum); err != nil {
		return 0, nil, fmt.Errorf("backup: write checksum: %w", err)
	}
	if err := file.Sync(); err != nil {
		return 0, nil, fmt.Errorf("backup: sync: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		return 0, nil, err
	}
	if err := file.Close(); err != nil {
		return 0, nil, fmt.Errorf("backup: close: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return 0, nil, fmt.Errorf("backup: rename: %w", err)
	}
	return stat.Size(), sum, nil
}

// Load restores records from the newest archive whose checksum
// verifies, falling back past corrupted ones. Key material problems
// are hard errors; silently restoring an older archive because the
// passphrase is wrong would hide the real failure.
func (m *Manager) Load() ([]*domain.TokenRecord, *Info, error) {
	infos, err := m.List()
	if err != nil {
		return nil, nil, err
	}
	if len(infos) == 0 {
		return nil, nil, ErrNoArchives
	}

	for i := len(infos) - 1; i >= 0; i-- {
		records, info, err := m.LoadFile(infos[i].Path)
		if err == nil {
			return records, info, nil
		}
		if errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrInvalidMagic) {
			continue
		}
		return nil, nil, err
	}
	return nil, nil, ErrNoArchives
}

// LoadFile reads and verifies one archive.
func (m *Manager) LoadFile(path string) ([]*domain.TokenRecord, *Info, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
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

	bodyLen := stat.Size() - checksumSize
	expected := make([]byte, checksumSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, bodyLen, checksumSize), expected); err != nil {
		return nil, nil, err
	}
	h := sha256.New()
	if _, err := io.CopyN(h, io.NewSectionReader(f, 0, bodyLen), bodyLen); err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(h.Sum(nil), expected) {
		return nil, nil, ErrChecksumMismatch
	}

	br := bufio.NewReader(io.NewSectionReader(f, 0, bodyLen))

	magic := make([]byte, len(magicBytes))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(magic, magicBytes) {
		return nil, nil, ErrInvalidMagic
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
		return nil, nil, err
	}
	hdrLen := binary.BigEndian.Uint32(lenBuf[:])
	if hdrLen == 0 || hdrLen > maxHeaderSize {
		return nil, nil, fmt.Errorf("backup: bad header length %d", hdrLen)
	}
	hdrJSON := make([]byte, hdrLen)
	if _, err := io.ReadFull(br, hdrJSON); err != nil {
		return nil, nil, err
	}
	var hdr archiveHeader
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return nil, nil, fmt.Errorf("backup: unmarshal header: %w", err)
	}

	if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
		return nil, nil, err
	}
	dataLen := binary.BigEndian.Uint32(lenBuf[:])
	data := make([]byte, dataLen)
	if _, err := io.ReadFull(br, data); err != nil {
		return nil, nil, err
	}

	switch {
	case hdr.Encrypted:
		if !m.cfg.Encryption.Enabled() {
			return nil, nil, ErrKeyRequired
		}
		enc := m.cfg.Encryption
		if hdr.Salt != "" {
			salt, err := hex.DecodeString(hdr.Salt)
			if err != nil {
				return nil, nil, fmt.Errorf("backup: bad salt in header: %w", err)
			}
			enc.Salt = salt
		}
		if hdr.Algorithm != "" {
			enc.Algorithm = hdr.Algorithm
		}
		cipher, _, err := NewCipher(enc)
		if err != nil {
			return nil, nil, err
		}
		plain, err := cipher.Decrypt(data, hdrJSON)
		if err != nil {
			return nil, nil, ErrDecryptFailed
		}
		data = plain
	case m.cfg.Encryption.Enabled():
		// Refuse a plaintext archive when encryption is expected; a
		// stripped header must not go unnoticed.
		return nil, nil, ErrUnexpectedPlain
	}

	var decoded []archiveRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, nil, fmt.Errorf("backup: unmarshal records: %w", err)
	}
	records := make([]*domain.TokenRecord, 0, len(decoded))
	for _, r := range decoded {
		records = append(records, r.toDomain())
	}

	info := &Info{
		ID:          strings.TrimSuffix(filepath.Base(path), fileExtension),
		RecordCount: int64(hdr.RecordCount),
		CreatedAt:   hdr.CreatedAt,
		Size:        stat.Size(),
		Path:        path,
		Checksum:    hex.EncodeToString(expected),
		Store:       hdr.Store,
		Encrypted:   hdr.Encrypted,
	}
	return records, info, nil
}

// List returns the archives in the directory, oldest first. Header
// metadata is filled in best effort; a truncated archive still lists
// with its id and size.
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

	var infos []*Info
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
		if hdr, err := readHeader(p); err == nil {
			info.RecordCount = int64(hdr.RecordCount)
			info.CreatedAt = hdr.CreatedAt
			info.Store = hdr.Store
			info.Encrypted = hdr.Encrypted
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// readHeader parses the magic and header blocks without verifying the
// checksum.
func readHeader(path string) (*archiveHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic := make([]byte, len(magicBytes))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, magicBytes) {
		return nil, ErrInvalidMagic
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
		return nil, err
	}
	hdrLen := binary.BigEndian.Uint32(lenBuf[:])
	if hdrLen == 0 || hdrLen > maxHeaderSize {
		return nil, fmt.Errorf("backup: bad header length %d", hdrLen)
	}
	hdrJSON := make([]byte, hdrLen)
	if _, err := io.ReadFull(br, hdrJSON); err != nil {
		return nil, err
	}

	var hdr archiveHeader
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return nil, fmt.Errorf("backup: unmarshal header: %w", err)
	}
	return &hdr, nil
}

// Delete removes one archive by id.
func (m *Manager) Delete(id string) error {
	if id != filepath.Base(id) || !strings.HasPrefix(id, filePrefix) {
		return fmt.Errorf("backup: invalid archive id %q", id)
	}
	err := os.Remove(filepath.Join(m.cfg.Dir, id+fileExtension))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

// Prune applies the retention policy and returns how many archives it
// removed. An archive survives when it is among the newest
// RetentionCount, or younger than RetentionDays, and the newest
// archive always survives.
func (m *Manager) Prune() (int, error) {
	infos, err := m.List()
	if err != nil {
		return 0, err
	}
	if len(infos) <= 1 {
		return 0, nil
	}

	keep := make(map[string]struct{}, len(infos))

	if m.cfg.RetentionCount > 0 {
		start := len(infos) - m.cfg.RetentionCount
		if start < 0 {
			start = 0
		}
		for _, info := range infos[start:] {
			keep[info.Path] = struct{}{}
		}
	}

	if m.cfg.RetentionDays > 0 {
		cutoff := time.Now().Add(-time.Duration(m.cfg.RetentionDays) * 24 * time.Hour)
		for _, info := range infos {
			st, err := os.Stat(info.Path)
			if err != nil {
				continue
			}
			if st.ModTime().After(cutoff) {
				keep[info.Path] = struct{}{}
			}
		}
	}

	keep[infos[len(infos)-1].Path] = struct{}{}

	removed := 0
	for _, info := range infos {
		if _, ok := keep[info.Path]; ok {
			continue
		}
		if os.Remove(info.Path) == nil {
			removed++
		}
	}
	return removed, nil
}

// generateID builds backup-<timestamp>-<sequence>, taking the first
// sequence number not already on disk within the same second.
func (m *Manager) generateID(t time.Time) string {
	ts := t.Format("20060102150405")
	for seq := 1; ; seq++ {
		id := fmt.Sprintf("%s%s-%04d", filePrefix, ts, seq)
		if _, err := os.Stat(filepath.Join(m.cfg.Dir, id+fileExtension)); err != nil {
			return id
		}
	}
}

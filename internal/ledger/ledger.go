package ledger

import (
	"bufio"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"kolibri-v0/internal/digit"
)

const (
	HashSize = sha256.Size

	// Text limits before digit encoding. Digit fields grow 3x.
	MaxEventLen   = 32
	MaxPayloadLen = 256

	maxKeyLen = 64
)

var (
	ErrClosed      = errors.New("ledger: closed")
	ErrBadKey      = errors.New("ledger: key must be 1..64 bytes")
	ErrFieldTooBig = errors.New("ledger: event or payload too long")
)

// CorruptError marks a chain, HMAC, or line-format failure. Any corruption
// is fatal for the affected file: open, verify and replay all stop at the
// first bad record instead of accepting a partial chain.
type CorruptError struct {
	Line   int
	Reason string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("ledger: corrupt record at line %d: %s", e.Line, e.Reason)
}

// Status reports what a stateless scan found on disk.
type Status int

const (
	StatusOk Status = iota
	// StatusMissing means the file does not exist: nothing to verify.
	StatusMissing
)

// Record is one ReasonBlock. Event and payload are stored digit-encoded
// ('0'..'9' only) so the line format never needs escaping.
type Record struct {
	Index         uint64
	Timestamp     uint64
	PrevHash      [HashSize]byte
	HMAC          [HashSize]byte
	EventDigits   string
	PayloadDigits string
}

// Event decodes the event type back to text.
func (r *Record) Event() (string, error) { return digit.DecodeText(r.EventDigits) }

// Payload decodes the payload back to text.
func (r *Record) Payload() (string, error) { return digit.DecodeText(r.PayloadDigits) }

// canonicalBytes is the exact byte layout the HMAC covers: index and
// timestamp big-endian, the previous tag, then each digit field prefixed
// with its u16 length so variable fields cannot alias each other.
func (r *Record) canonicalBytes() []byte {
	buf := make([]byte, 0, 16+HashSize+4+len(r.EventDigits)+len(r.PayloadDigits))
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], r.Index)
	buf = append(buf, u64[:]...)
	binary.BigEndian.PutUint64(u64[:], r.Timestamp)
	buf = append(buf, u64[:]...)
	buf = append(buf, r.PrevHash[:]...)
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], uint16(len(r.EventDigits)))
	buf = append(buf, u16[:]...)
	buf = append(buf, r.EventDigits...)
	binary.BigEndian.PutUint16(u16[:], uint16(len(r.PayloadDigits)))
	buf = append(buf, u16[:]...)
	buf = append(buf, r.PayloadDigits...)
	return buf
}

func (r *Record) computeHMAC(key []byte) [HashSize]byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(r.canonicalBytes())
	var out [HashSize]byte
	copy(out[:], mac.Sum(nil))
	return out
}

func (r *Record) line() string {
	return fmt.Sprintf("%d,%d,%s,%s,%s,%s\n",
		r.Index, r.Timestamp,
		hex.EncodeToString(r.PrevHash[:]), hex.EncodeToString(r.HMAC[:]),
		r.EventDigits, r.PayloadDigits)
}

// Ledger is an append-only hash chain over one file. A single Runtime owns
// it; there is no file locking and no multi-writer support.
type Ledger struct {
	file      *os.File
	path      string
	key       []byte
	lastHash  [HashSize]byte
	nextIndex uint64

	// test seam; production uses the wall clock
	now func() uint64
}

// Open reads and verifies every existing record, then positions for append.
// The first verification failure fails the whole open and leaves the file
// untouched.
func Open(path string, key []byte) (*Ledger, error) {
	if len(key) == 0 || len(key) > maxKeyLen {
		return nil, ErrBadKey
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	l := &Ledger{
		file: f,
		path: path,
		key:  append([]byte(nil), key...),
		now:  func() uint64 { return uint64(time.Now().Unix()) },
	}
	tip, next, err := scan(f, key, nil)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	l.lastHash = tip
	l.nextIndex = next
	if _, err := f.Seek(0, 2); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("ledger: seek end: %w", err)
	}
	return l, nil
}

// NextIndex returns the index the next appended record will carry.
func (l *Ledger) NextIndex() uint64 { return l.nextIndex }

// TipHash returns the current chain tip (last record's HMAC).
func (l *Ledger) TipHash() [HashSize]byte { return l.lastHash }

func (l *Ledger) Path() string { return l.path }

// Append builds, authenticates and durably writes one record. On any
// failure the in-memory index and tip are left unchanged.
func (l *Ledger) Append(event, payload string) (Record, error) {
	if l.file == nil {
		return Record{}, ErrClosed
	}
	if len(event) == 0 || len(event) > MaxEventLen || len(payload) > MaxPayloadLen {
		return Record{}, ErrFieldTooBig
	}
	rec := Record{
		Index:         l.nextIndex,
		Timestamp:     l.now(),
		PrevHash:      l.lastHash,
		EventDigits:   digit.EncodeText(event),
		PayloadDigits: digit.EncodeText(payload),
	}
	rec.HMAC = rec.computeHMAC(l.key)
	if _, err := l.file.WriteString(rec.line()); err != nil {
		return Record{}, fmt.Errorf("ledger: write: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return Record{}, fmt.Errorf("ledger: sync: %w", err)
	}
	l.lastHash = rec.HMAC
	l.nextIndex++
	return rec, nil
}

// Close flushes and releases the handle. Safe to call more than once.
func (l *Ledger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	for i := range l.key {
		l.key[i] = 0
	}
	return err
}

// Verify re-scans a path without opening it for writing. A missing file is
// trivially valid.
func Verify(path string, key []byte) (Status, error) {
	return Replay(path, key, nil)
}

// Replay validates the chain and hands each good record to visit, in order.
// It stops at the first invalid record without visiting it.
func Replay(path string, key []byte, visit func(Record) error) (Status, error) {
	if len(key) == 0 || len(key) > maxKeyLen {
		return StatusOk, ErrBadKey
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return StatusMissing, nil
		}
		return StatusOk, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	defer f.Close()
	if _, _, err := scan(f, key, visit); err != nil {
		return StatusOk, err
	}
	return StatusOk, nil
}

// scan walks every line, checking index monotonicity, the prev-hash link
// and the HMAC. Returns the chain tip and next index.
func scan(f *os.File, key []byte, visit func(Record) error) ([HashSize]byte, uint64, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return [HashSize]byte{}, 0, fmt.Errorf("ledger: seek: %w", err)
	}
	var prev [HashSize]byte
	var next uint64
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), 64*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		rec, err := parseLine(sc.Text())
		if err != nil {
			return prev, next, &CorruptError{Line: lineNo, Reason: err.Error()}
		}
		if rec.Index != next {
			return prev, next, &CorruptError{Line: lineNo, Reason: fmt.Sprintf("index %d, want %d", rec.Index, next)}
		}
		if rec.PrevHash != prev {
			return prev, next, &CorruptError{Line: lineNo, Reason: "prev hash does not match chain tip"}
		}
		if want := rec.computeHMAC(key); !hmac.Equal(want[:], rec.HMAC[:]) {
			return prev, next, &CorruptError{Line: lineNo, Reason: "hmac mismatch"}
		}
		if visit != nil {
			if err := visit(rec); err != nil {
				return prev, next, fmt.Errorf("ledger: replay visitor: %w", err)
			}
		}
		prev = rec.HMAC
		next = rec.Index + 1
	}
	if err := sc.Err(); err != nil {
		return prev, next, fmt.Errorf("ledger: read: %w", err)
	}
	return prev, next, nil
}

func parseLine(line string) (Record, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 6 {
		return Record{}, fmt.Errorf("want 6 fields, got %d", len(parts))
	}
	var rec Record
	var err error
	if rec.Index, err = strconv.ParseUint(parts[0], 10, 64); err != nil {
		return Record{}, fmt.Errorf("bad index: %v", err)
	}
	if rec.Timestamp, err = strconv.ParseUint(parts[1], 10, 64); err != nil {
		return Record{}, fmt.Errorf("bad timestamp: %v", err)
	}
	if err := parseHash(parts[2], &rec.PrevHash); err != nil {
		return Record{}, fmt.Errorf("bad prev hash: %v", err)
	}
	if err := parseHash(parts[3], &rec.HMAC); err != nil {
		return Record{}, fmt.Errorf("bad hmac: %v", err)
	}
	if err := checkDigits(parts[4], MaxEventLen*3); err != nil {
		return Record{}, fmt.Errorf("bad event field: %v", err)
	}
	if err := checkDigits(parts[5], MaxPayloadLen*3); err != nil {
		return Record{}, fmt.Errorf("bad payload field: %v", err)
	}
	rec.EventDigits = parts[4]
	rec.PayloadDigits = parts[5]
	return rec, nil
}

func parseHash(s string, out *[HashSize]byte) error {
	if len(s) != HashSize*2 {
		return fmt.Errorf("want %d hex chars, got %d", HashSize*2, len(s))
	}
	if strings.ToLower(s) != s {
		return fmt.Errorf("hex must be lowercase")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	copy(out[:], b)
	return nil
}

func checkDigits(s string, max int) error {
	if len(s) > max {
		return fmt.Errorf("field of %d digits exceeds max %d", len(s), max)
	}
	if len(s)%3 != 0 {
		return fmt.Errorf("digit count %d not a multiple of 3", len(s))
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return fmt.Errorf("non-digit character %q", s[i])
		}
	}
	return nil
}

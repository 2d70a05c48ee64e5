package digit

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrStreamFull = errors.New("digit: stream full")
	ErrBadDigit   = errors.New("digit: value out of 0..9")
	ErrBadLength  = errors.New("digit: length not a multiple of 3")
)

// Stream is a bounded digit sequence with an independent read cursor.
// Every stored value is a decimal digit 0..9.
type Stream struct {
	digits []uint8
	pos    int
}

func NewStream(capacity int) *Stream {
	return &Stream{digits: make([]uint8, 0, capacity)}
}

func (s *Stream) Push(d uint8) error {
	if d > 9 {
		return ErrBadDigit
	}
	if len(s.digits) >= cap(s.digits) {
		return ErrStreamFull
	}
	s.digits = append(s.digits, d)
	return nil
}

// Read returns the next digit, or false once the cursor reaches the end.
func (s *Stream) Read() (uint8, bool) {
	if s.pos >= len(s.digits) {
		return 0, false
	}
	d := s.digits[s.pos]
	s.pos++
	return d, true
}

func (s *Stream) Rewind()        { s.pos = 0 }
func (s *Stream) Len() int       { return len(s.digits) }
func (s *Stream) Remaining() int { return len(s.digits) - s.pos }

func (s *Stream) Reset() {
	s.digits = s.digits[:0]
	s.pos = 0
}

func (s *Stream) Digits() []uint8 {
	out := make([]uint8, len(s.digits))
	copy(out, s.digits)
	return out
}

// EncodeBytes maps every byte to exactly three digits: hundreds, tens, ones
// of its 0..255 value.
func EncodeBytes(data []byte) []uint8 {
	out := make([]uint8, 0, len(data)*3)
	for _, b := range data {
		out = append(out, b/100, (b/10)%10, b%10)
	}
	return out
}

// DecodeBytes is the exact inverse of EncodeBytes.
func DecodeBytes(digits []uint8) ([]byte, error) {
	if len(digits)%3 != 0 {
		return nil, ErrBadLength
	}
	out := make([]byte, 0, len(digits)/3)
	for i := 0; i < len(digits); i += 3 {
		for j := 0; j < 3; j++ {
			if digits[i+j] > 9 {
				return nil, ErrBadDigit
			}
		}
		v := int(digits[i])*100 + int(digits[i+1])*10 + int(digits[i+2])
		if v > 255 {
			return nil, fmt.Errorf("digit: byte value %d out of range", v)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

// EncodeText renders a string as an ASCII digit string, three characters
// per input byte. Ledger fields use this form so payloads stay inside a
// fixed '0'..'9' alphabet and never need delimiter escaping.
func EncodeText(text string) string {
	digits := EncodeBytes([]byte(text))
	out := make([]byte, len(digits))
	for i, d := range digits {
		out[i] = '0' + d
	}
	return string(out)
}

// DecodeText reverses EncodeText. It rejects non-digit characters and any
// length that is not a multiple of three.
func DecodeText(digits string) (string, error) {
	raw := make([]uint8, len(digits))
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if c < '0' || c > '9' {
			return "", ErrBadDigit
		}
		raw[i] = c - '0'
	}
	b, err := DecodeBytes(raw)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodeInt64 packs a signed 64-bit integer as: one sign digit (0 positive,
// 1 negative), two magnitude-length digits, then the magnitude digits most
// significant first. math.MinInt64 round-trips because the magnitude is
// carried as uint64.
func EncodeInt64(v int64) []uint8 {
	sign := uint8(0)
	var mag uint64
	if v < 0 {
		sign = 1
		mag = uint64(-(v + 1)) + 1
	} else {
		mag = uint64(v)
	}
	var magDigits []uint8
	if mag == 0 {
		magDigits = []uint8{0}
	} else {
		for mag > 0 {
			magDigits = append([]uint8{uint8(mag % 10)}, magDigits...)
			mag /= 10
		}
	}
	n := len(magDigits)
	out := make([]uint8, 0, 3+n)
	out = append(out, sign, uint8(n/10), uint8(n%10))
	out = append(out, magDigits...)
	return out
}

// DecodeInt64 reverses EncodeInt64 and fails on truncated or malformed input.
func DecodeInt64(digits []uint8) (int64, error) {
	if len(digits) < 4 {
		return 0, fmt.Errorf("digit: int64 needs at least 4 digits, got %d", len(digits))
	}
	for _, d := range digits {
		if d > 9 {
			return 0, ErrBadDigit
		}
	}
	sign := digits[0]
	if sign > 1 {
		return 0, fmt.Errorf("digit: bad sign digit %d", sign)
	}
	n := int(digits[1])*10 + int(digits[2])
	if n < 1 || n > 19 || len(digits) != 3+n {
		return 0, fmt.Errorf("digit: bad magnitude length %d for %d digits", n, len(digits))
	}
	var mag uint64
	for _, d := range digits[3:] {
		if mag > (math.MaxUint64-uint64(d))/10 {
			return 0, fmt.Errorf("digit: magnitude overflow")
		}
		mag = mag*10 + uint64(d)
	}
	if sign == 1 {
		if mag > uint64(math.MaxInt64)+1 {
			return 0, fmt.Errorf("digit: magnitude %d exceeds int64 range", mag)
		}
		if mag == uint64(math.MaxInt64)+1 {
			return math.MinInt64, nil
		}
		return -int64(mag), nil
	}
	if mag > uint64(math.MaxInt64) {
		return 0, fmt.Errorf("digit: magnitude %d exceeds int64 range", mag)
	}
	return int64(mag), nil
}

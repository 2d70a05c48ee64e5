package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	headerSize = 3
	// MaxPayload bounds a single message payload.
	MaxPayload = 256
	// MaxMessageSize is the largest frame a peer may send.
	MaxMessageSize = headerSize + MaxPayload
	// MaxGeneDigits bounds the gene carried in a MigrateRule.
	MaxGeneDigits = 32
)

const (
	kindHello       uint8 = 1
	kindMigrateRule uint8 = 2
	kindAck         uint8 = 3
)

var (
	ErrShortMessage = errors.New("wire: message truncated")
	ErrBadType      = errors.New("wire: unknown message type")
	ErrBadPayload   = errors.New("wire: payload does not match type layout")
)

// Message is one decoded wire frame. The concrete type carries the
// payload; decode never yields a type whose payload did not fully parse.
type Message interface {
	Encode() []byte
	kind() uint8
}

// Hello announces the sender's node id. It is the first frame on every
// connection.
type Hello struct {
	NodeID uint32
}

// MigrateRule carries one evolved gene and its fitness from a peer.
type MigrateRule struct {
	NodeID  uint32
	Digits  []uint8
	Fitness float64
}

// Ack reports a one-byte status.
type Ack struct {
	Status uint8
}

func (Hello) kind() uint8       { return kindHello }
func (MigrateRule) kind() uint8 { return kindMigrateRule }
func (Ack) kind() uint8         { return kindAck }

func frame(kind uint8, payload []byte) []byte {
	buf := make([]byte, headerSize+len(payload))
	buf[0] = kind
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(payload)))
	copy(buf[headerSize:], payload)
	return buf
}

func (m Hello) Encode() []byte {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, m.NodeID)
	return frame(kindHello, payload)
}

func (m MigrateRule) Encode() []byte {
	payload := make([]byte, 0, 4+1+len(m.Digits)+8)
	payload = binary.BigEndian.AppendUint32(payload, m.NodeID)
	payload = append(payload, uint8(len(m.Digits)))
	payload = append(payload, m.Digits...)
	payload = binary.BigEndian.AppendUint64(payload, math.Float64bits(m.Fitness))
	return frame(kindMigrateRule, payload)
}

func (m Ack) Encode() []byte {
	return frame(kindAck, []byte{m.Status})
}

// Decode parses one complete frame. The buffer must hold the whole
// message; a declared length that overruns the buffer, an unknown type
// tag or a payload that does not match the type's layout all refuse with
// an error, never a partial message.
func Decode(buf []byte) (Message, error) {
	if len(buf) < headerSize {
		return nil, ErrShortMessage
	}
	kind := buf[0]
	payloadLen := int(binary.BigEndian.Uint16(buf[1:3]))
	if payloadLen > MaxPayload {
		return nil, fmt.Errorf("%w: declared payload %d over limit", ErrBadPayload, payloadLen)
	}
	if len(buf) < headerSize+payloadLen {
		return nil, ErrShortMessage
	}
	payload := buf[headerSize : headerSize+payloadLen]

	switch kind {
	case kindHello:
		if payloadLen != 4 {
			return nil, fmt.Errorf("%w: hello payload %d bytes", ErrBadPayload, payloadLen)
		}
		return Hello{NodeID: binary.BigEndian.Uint32(payload)}, nil

	case kindMigrateRule:
		if payloadLen < 4+1+8 {
			return nil, fmt.Errorf("%w: migrate payload %d bytes", ErrBadPayload, payloadLen)
		}
		nodeID := binary.BigEndian.Uint32(payload[:4])
		digitLen := int(payload[4])
		if digitLen > MaxGeneDigits || payloadLen != 4+1+digitLen+8 {
			return nil, fmt.Errorf("%w: gene length %d", ErrBadPayload, digitLen)
		}
		digits := make([]uint8, digitLen)
		copy(digits, payload[5:5+digitLen])
		bits := binary.BigEndian.Uint64(payload[5+digitLen:])
		return MigrateRule{
			NodeID:  nodeID,
			Digits:  digits,
			Fitness: math.Float64frombits(bits),
		}, nil

	case kindAck:
		if payloadLen != 1 {
			return nil, fmt.Errorf("%w: ack payload %d bytes", ErrBadPayload, payloadLen)
		}
		return Ack{Status: payload[0]}, nil
	}
	return nil, fmt.Errorf("%w: tag %d", ErrBadType, kind)
}

package wire

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// IOTimeout bounds every socket read and write so a stalled peer cannot
// hang the poller.
const IOTimeout = 5 * time.Second

var ErrClosed = errors.New("wire: listener closed")

// Listener accepts one peer connection per Poll and reads frames off it
// until a MigrateRule arrives or the peer hangs up.
type Listener struct {
	tcp *net.TCPListener
	cfg *tls.Config
}

// StartListener binds the port and prepares a server TLS context with a
// fresh self-signed certificate.
func StartListener(port uint16) (*Listener, error) {
	cert, err := SelfSignedCert()
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("wire: bind port %d: %w", port, err)
	}
	return &Listener{
		tcp: ln.(*net.TCPListener),
		cfg: &tls.Config{Certificates: []tls.Certificate{cert}},
	}, nil
}

// Addr returns the bound address, useful when the port was 0.
func (l *Listener) Addr() net.Addr {
	if l.tcp == nil {
		return nil
	}
	return l.tcp.Addr()
}

// Poll waits up to timeout for a peer connection and serves it. A zero
// timeout checks and returns immediately. Returns (nil, nil) when no peer
// connected in time or the frames held no decodable message; transport
// failures mid-conversation also resolve to the last good message rather
// than an error, since gossip is best-effort.
func (l *Listener) Poll(timeout time.Duration) (Message, error) {
	if l.tcp == nil {
		return nil, ErrClosed
	}
	if err := l.tcp.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	conn, err := l.tcp.Accept()
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, nil
		}
		return nil, fmt.Errorf("wire: accept: %w", err)
	}
	defer conn.Close()

	tlsConn := tls.Server(conn, l.cfg)
	if err := tlsConn.SetDeadline(time.Now().Add(IOTimeout)); err != nil {
		return nil, err
	}
	if err := tlsConn.Handshake(); err != nil {
		return nil, fmt.Errorf("wire: server handshake: %w", err)
	}

	var last Message
	for {
		if err := tlsConn.SetDeadline(time.Now().Add(IOTimeout)); err != nil {
			break
		}
		msg, err := readFrame(tlsConn)
		if err != nil {
			break
		}
		last = msg
		if _, ok := msg.(MigrateRule); ok {
			return msg, nil
		}
	}
	return last, nil
}

// Close shuts the listening socket. Safe to call more than once.
func (l *Listener) Close() error {
	if l.tcp == nil {
		return nil
	}
	err := l.tcp.Close()
	l.tcp = nil
	return err
}

// readFrame reads one complete message off the stream.
func readFrame(r io.Reader) (Message, error) {
	buf := make([]byte, MaxMessageSize)
	if _, err := io.ReadFull(r, buf[:headerSize]); err != nil {
		return nil, err
	}
	payloadLen := int(buf[1])<<8 | int(buf[2])
	if payloadLen > MaxPayload {
		return nil, fmt.Errorf("%w: declared payload %d over limit", ErrBadPayload, payloadLen)
	}
	if _, err := io.ReadFull(r, buf[headerSize:headerSize+payloadLen]); err != nil {
		return nil, err
	}
	return Decode(buf[:headerSize+payloadLen])
}

// ShareFormula dials a peer and pushes one evolved gene: HELLO first,
// then MIGRATE_RULE, then hang up. The TLS handshake skips certificate
// verification because peers present throwaway self-signed certs.
func ShareFormula(host string, port uint16, nodeID uint32, digits []uint8, fitness float64) error {
	if len(digits) == 0 || len(digits) > MaxGeneDigits {
		return fmt.Errorf("wire: gene length %d out of 1..%d", len(digits), MaxGeneDigits)
	}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, IOTimeout)
	if err != nil {
		return fmt.Errorf("wire: dial %s: %w", addr, err)
	}
	defer conn.Close()

	tlsConn := tls.Client(conn, &tls.Config{InsecureSkipVerify: true})
	if err := tlsConn.SetDeadline(time.Now().Add(IOTimeout)); err != nil {
		return err
	}
	if err := tlsConn.Handshake(); err != nil {
		return fmt.Errorf("wire: client handshake: %w", err)
	}

	if _, err := tlsConn.Write(Hello{NodeID: nodeID}.Encode()); err != nil {
		return fmt.Errorf("wire: send hello: %w", err)
	}
	msg := MigrateRule{NodeID: nodeID, Digits: digits, Fitness: fitness}
	if _, err := tlsConn.Write(msg.Encode()); err != nil {
		return fmt.Errorf("wire: send formula: %w", err)
	}
	return tlsConn.CloseWrite()
}

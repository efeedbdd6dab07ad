package publisher

import (
	"net"

	"github.com/c360/sttp/cipher"
	"github.com/c360/sttp/errors"
)

// udpChannel is the publisher's single outbound UDP socket for the
// optional unreliable data channel; every connection that negotiates it
// shares this socket and addresses datagrams to its own remote UDP
// endpoint.
type udpChannel struct {
	conn *net.UDPConn
}

func newUDPChannel(bindAddr string) (*udpChannel, error) {
	addr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, errors.WrapFatal(err, "publisher", "newUDPChannel", "resolve addr")
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, errors.WrapFatal(err, "publisher", "newUDPChannel", "listen")
	}
	return &udpChannel{conn: conn}, nil
}

func (u *udpChannel) Close() error {
	if u == nil {
		return nil
	}
	return u.conn.Close()
}

// send seals payload under the connection's active key pair and writes
// it as one datagram: [1-byte selector][8-byte counter][ciphertext].
// A connection with no negotiated UDP endpoint gets an invalid-input
// error and nothing is sent.
func (u *udpChannel) send(c *connection, payload []byte) error {
	if u == nil || c.udpAddr == nil {
		return errors.WrapInvalid(errNoUDPEndpoint(), "publisher", "udpChannel.send", "precondition")
	}

	selector, pair := c.keys.Active()
	counter := c.udpSeq.Add(1)

	ciphertext, err := cipher.Seal(pair, counter, payload)
	if err != nil {
		return errors.Wrap(err, "publisher", "udpChannel.send", "seal")
	}

	packet := make([]byte, 9+len(ciphertext))
	packet[0] = byte(selector)
	for i := 0; i < 8; i++ {
		packet[1+i] = byte(counter >> (56 - 8*i))
	}
	copy(packet[9:], ciphertext)

	if _, err := u.conn.WriteToUDP(packet, c.udpAddr); err != nil {
		return errors.WrapTransient(err, "publisher", "udpChannel.send", "write")
	}
	return nil
}

func errNoUDPEndpoint() error {
	return errUDPEndpointMissing{}
}

type errUDPEndpointMissing struct{}

func (errUDPEndpointMissing) Error() string { return "connection has no negotiated UDP endpoint" }

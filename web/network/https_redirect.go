// Package network provides listener helpers for the web server.
package network

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// tlsHandshakeRecord is the first byte of every TLS ClientHello.
const tlsHandshakeRecord = 0x16

// AutoHttpsListener accepts plain HTTP on a TLS port: such clients get a
// permanent redirect to the https URL and are disconnected. Wrap it with
// tls.NewListener.
type AutoHttpsListener struct {
	net.Listener
}

func NewAutoHttpsListener(listener net.Listener) net.Listener {
	return &AutoHttpsListener{Listener: listener}
}

func (l *AutoHttpsListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return &sniffConn{Conn: conn, reader: bufio.NewReader(conn)}, nil
}

// sniffConn decides on its first read whether the peer speaks TLS.
type sniffConn struct {
	net.Conn

	reader *bufio.Reader
	once   sync.Once
	plain  bool
}

func (c *sniffConn) Read(buf []byte) (int, error) {
	c.once.Do(c.sniff)
	if c.plain {
		return 0, io.EOF
	}
	return c.reader.Read(buf)
}

func (c *sniffConn) sniff() {
	first, err := c.reader.Peek(1)
	if err != nil || first[0] == tlsHandshakeRecord {
		return
	}
	c.plain = true

	_ = c.Conn.SetDeadline(time.Now().Add(5 * time.Second))
	request, err := http.ReadRequest(c.reader)
	if err != nil {
		_ = c.Conn.Close()
		return
	}
	resp := http.Response{
		StatusCode: http.StatusPermanentRedirect,
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{},
		Close:      true,
	}
	resp.Header.Set("Location", "https://"+request.Host+request.RequestURI)
	_ = resp.Write(c.Conn)
	_ = c.Conn.Close()
}

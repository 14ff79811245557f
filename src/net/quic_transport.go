package net

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"math/big"
	"net"
	"sync"
	"time"

	quic "github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"
)

const (
	// QUICNextProto is the ALPN protocol of hop streams.
	QUICNextProto = "crosswalk-hop"

	quicKeepAlive = 10 * time.Second
)

// QUICStreamLayer implements StreamLayer over QUIC. Every dialed net.Conn is a
// single bidirectional stream on its own QUIC connection; inbound connections
// may carry any number of streams.
//
// TLS only provides the QUIC handshake here. Listeners present a throwaway
// self-signed certificate and dialers do not verify it: hops are
// authenticated by their signatures, not by the channel.
type QUICStreamLayer struct {
	advertise string
	listener  *quic.Listener
	logger    *logrus.Entry

	streams chan net.Conn
	ctx     context.Context
	cancel  context.CancelFunc

	closeOnce sync.Once
}

// NewQUICStreamLayer listens for QUIC connections on bindAddr.
func NewQUICStreamLayer(bindAddr, advertise string, logger *logrus.Entry) (*QUICStreamLayer, error) {
	tlsConf, err := quicServerTLSConfig()
	if err != nil {
		return nil, err
	}

	listener, err := quic.ListenAddr(bindAddr, tlsConf, nil)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &QUICStreamLayer{
		advertise: advertise,
		listener:  listener,
		logger:    logger,
		streams:   make(chan net.Conn),
		ctx:       ctx,
		cancel:    cancel,
	}

	go q.acceptConns()

	return q, nil
}

// NewQUICTransport returns a NetworkTransport that is built on top of a QUIC
// stream layer.
func NewQUICTransport(
	bindAddr string,
	advertise string,
	maxPool int,
	timeout time.Duration,
	logger *logrus.Entry,
) (*NetworkTransport, error) {
	stream, err := NewQUICStreamLayer(bindAddr, advertise, logger)
	if err != nil {
		return nil, err
	}
	return NewNetworkTransport(stream, maxPool, timeout, logger), nil
}

func (q *QUICStreamLayer) acceptConns() {
	for {
		conn, err := q.listener.Accept(q.ctx)
		if err != nil {
			if q.ctx.Err() == nil && q.logger != nil {
				q.logger.WithField("error", err).Debug("quic accept")
			}
			return
		}
		go q.acceptStreams(conn)
	}
}

func (q *QUICStreamLayer) acceptStreams(conn quic.Connection) {
	for {
		stream, err := conn.AcceptStream(q.ctx)
		if err != nil {
			conn.CloseWithError(0, "")
			return
		}
		select {
		case q.streams <- &quicConn{Stream: stream}:
		case <-q.ctx.Done():
			stream.CancelRead(0)
			stream.Close()
			conn.CloseWithError(0, "")
			return
		}
	}
}

// Dial implements the StreamLayer interface.
func (q *QUICStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := quic.DialAddr(ctx, address, quicClientTLSConfig(), &quic.Config{
		// pooled connections must survive between walks
		KeepAlivePeriod: quicKeepAlive,
	})
	if err != nil {
		return nil, err
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "")
		return nil, err
	}

	return &quicConn{Stream: stream, conn: conn}, nil
}

// Accept implements the net.Listener interface.
func (q *QUICStreamLayer) Accept() (net.Conn, error) {
	select {
	case c := <-q.streams:
		return c, nil
	case <-q.ctx.Done():
		return nil, net.ErrClosed
	}
}

// Close implements the net.Listener interface.
func (q *QUICStreamLayer) Close() error {
	var err error
	q.closeOnce.Do(func() {
		q.cancel()
		err = q.listener.Close()
	})
	return err
}

// Addr implements the net.Listener interface.
func (q *QUICStreamLayer) Addr() net.Addr {
	return q.listener.Addr()
}

// AdvertiseAddr implements the StreamLayer interface.
func (q *QUICStreamLayer) AdvertiseAddr() string {
	if q.advertise != "" {
		return q.advertise
	}
	return q.listener.Addr().String()
}

// quicConn adapts a QUIC stream to net.Conn. conn is set on the dialing side,
// which owns the QUIC connection and closes it with the stream.
type quicConn struct {
	quic.Stream
	conn quic.Connection
}

func (c *quicConn) Close() error {
	err := c.Stream.Close()
	if c.conn != nil {
		c.conn.CloseWithError(0, "")
	}
	return err
}

func (c *quicConn) LocalAddr() net.Addr {
	if c.conn != nil {
		return c.conn.LocalAddr()
	}
	return nil
}

func (c *quicConn) RemoteAddr() net.Addr {
	if c.conn != nil {
		return c.conn.RemoteAddr()
	}
	return nil
}

func quicServerTLSConfig() (*tls.Config, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, priv.Public(), priv)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: priv}},
		NextProtos:   []string{QUICNextProto},
	}, nil
}

func quicClientTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{QUICNextProto},
	}
}

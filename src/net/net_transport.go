package net

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

/*******************************************************************************
MOST OF THIS IS TAKEN FROM HASHICORP RAFT
*******************************************************************************/

const (
	rpcHop uint8 = iota
)

const (
	bufSize = 64 * 1024
)

/*
NetworkTransport provides a network based transport that can be used to
exchange hops with communities on remote machines. It requires an underlying
stream layer to provide a stream abstraction, which can be plain TCP or QUIC.

Each RPC request is framed by sending a byte that indicates the message type,
followed by the json encoded request. The response is an error string followed
by the json encoded response object.
*/
type NetworkTransport struct {
	logger *logrus.Entry

	connPool     map[string][]*netConn
	connPoolLock sync.Mutex
	maxPool      int

	consumeCh chan RPC

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex

	stream StreamLayer

	timeout time.Duration
}

type netConn struct {
	target string
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	dec    *codec.Decoder
	enc    *codec.Encoder
}

// Release closes the underlying connection
func (n *netConn) Release() error {
	return n.conn.Close()
}

// NewNetworkTransport creates a new network transport with the given stream
// layer. The maxPool controls how many connections we will pool (per target).
// The timeout bounds calls whose context carries no deadline.
func NewNetworkTransport(
	stream StreamLayer,
	maxPool int,
	timeout time.Duration,
	logger *logrus.Entry,
) *NetworkTransport {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &NetworkTransport{
		connPool:   make(map[string][]*netConn),
		consumeCh:  make(chan RPC),
		logger:     logger,
		maxPool:    maxPool,
		shutdownCh: make(chan struct{}),
		stream:     stream,
		timeout:    timeout,
	}
}

// Close is used to stop the network transport.
func (n *NetworkTransport) Close() error {
	n.shutdownLock.Lock()
	defer n.shutdownLock.Unlock()

	if !n.shutdown {
		close(n.shutdownCh)
		n.stream.Close()
		n.shutdown = true

		n.connPoolLock.Lock()
		for target, conns := range n.connPool {
			for _, c := range conns {
				c.Release()
			}
			delete(n.connPool, target)
		}
		n.connPoolLock.Unlock()
	}
	return nil
}

// Consumer implements the Transport interface.
func (n *NetworkTransport) Consumer() <-chan RPC {
	return n.consumeCh
}

// LocalAddr implements the Transport interface.
func (n *NetworkTransport) LocalAddr() string {
	addr := n.stream.Addr()

	if addr != nil {
		return addr.String()
	}

	return ""
}

// AdvertiseAddr implements the Transport interface.
func (n *NetworkTransport) AdvertiseAddr() string {
	return n.stream.AdvertiseAddr()
}

// IsShutdown is used to check if the transport is shutdown.
func (n *NetworkTransport) IsShutdown() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

// getPooledConn is used to grab a pooled connection.
func (n *NetworkTransport) getPooledConn(target string) *netConn {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	conns, ok := n.connPool[target]
	if !ok || len(conns) == 0 {
		return nil
	}

	var conn *netConn
	num := len(conns)
	conn, conns[num-1] = conns[num-1], nil
	n.connPool[target] = conns[:num-1]
	return conn
}

// getConn is used to get a connection from the pool.
func (n *NetworkTransport) getConn(target string, timeout time.Duration) (*netConn, error) {
	if conn := n.getPooledConn(target); conn != nil {
		return conn, nil
	}

	conn, err := n.stream.Dial(target, timeout)
	if err != nil {
		return nil, err
	}

	netConn := &netConn{
		target: target,
		conn:   conn,
		r:      bufio.NewReaderSize(conn, bufSize),
		w:      bufio.NewWriterSize(conn, bufSize),
	}
	netConn.dec = codec.NewDecoder(netConn.r, &codec.JsonHandle{})
	netConn.enc = codec.NewEncoder(netConn.w, &codec.JsonHandle{})

	return netConn, nil
}

// returnConn returns a connection back to the pool.
func (n *NetworkTransport) returnConn(conn *netConn) {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	key := conn.target
	conns := n.connPool[key]

	if !n.IsShutdown() && len(conns) < n.maxPool {
		conn.conn.SetDeadline(time.Time{})
		n.connPool[key] = append(conns, conn)
	} else {
		conn.Release()
	}
}

// Hop implements the Transport interface.
func (n *NetworkTransport) Hop(ctx context.Context, target string, args *HopRequest, resp *HopResponse) error {
	return n.genericRPC(ctx, target, rpcHop, args, resp)
}

// genericRPC handles a simple request/response RPC. The connection deadline
// follows the context, and cancelling the context aborts pending I/O.
func (n *NetworkTransport) genericRPC(ctx context.Context, target string, rpcType uint8, args interface{}, resp interface{}) error {
	if n.IsShutdown() {
		return ErrTransportShutdown
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	var dialTimeout time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		dialTimeout = time.Until(deadline)
		if dialTimeout <= 0 {
			return timeoutErr(context.DeadlineExceeded)
		}
	}

	conn, err := n.getConn(target, dialTimeout)
	if err != nil {
		return n.classify(ctx, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err = sendRPC(conn, rpcType, args); err != nil {
		return n.classify(ctx, err)
	}

	canReturn, err := decodeResponse(conn, resp)
	if canReturn && stop() {
		n.returnConn(conn)
	} else if canReturn {
		conn.Release()
	}

	if err != nil {
		return n.classify(ctx, err)
	}
	return nil
}

// classify turns deadline errors into ErrTransportTimeout.
func (n *NetworkTransport) classify(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		if ctx.Err() == context.Canceled {
			return ctx.Err()
		}
		return timeoutErr(err)
	case ctx.Err() != nil:
		return timeoutErr(ctx.Err())
	}
	return err
}

// timeoutErr wraps the cause of an expired call in ErrTransportTimeout. A
// cancelled call keeps context.Canceled.
func timeoutErr(cause error) error {
	if errors.Is(cause, context.Canceled) {
		return cause
	}
	return fmt.Errorf("%w: %v", ErrTransportTimeout, cause)
}

// sendRPC is used to encode and send the RPC.
func sendRPC(conn *netConn, rpcType uint8, args interface{}) error {
	if err := conn.w.WriteByte(rpcType); err != nil {
		conn.Release()
		return err
	}

	if err := conn.enc.Encode(args); err != nil {
		conn.Release()
		return err
	}

	if err := conn.w.Flush(); err != nil {
		conn.Release()
		return err
	}
	return nil
}

// decodeResponse is used to decode an RPC response and reports whether
// the connection can be reused.
func decodeResponse(conn *netConn, resp interface{}) (bool, error) {
	var rpcError string
	if err := conn.dec.Decode(&rpcError); err != nil {
		conn.Release()
		return false, err
	}

	if err := conn.dec.Decode(resp); err != nil {
		conn.Release()
		return false, err
	}

	if rpcError != "" {
		return true, errors.New(rpcError)
	}
	return true, nil
}

// Listen opens the stream and handles incoming connections.
func (n *NetworkTransport) Listen() {
	for {
		conn, err := n.stream.Accept()
		if err != nil {
			if n.IsShutdown() {
				return
			}
			n.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}
		n.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("accepted connection")

		go n.handleConn(conn)
	}
}

// handleConn is used to handle an inbound connection for its lifespan.
func (n *NetworkTransport) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReaderSize(conn, bufSize)
	w := bufio.NewWriterSize(conn, bufSize)
	dec := codec.NewDecoder(r, &codec.JsonHandle{})
	enc := codec.NewEncoder(w, &codec.JsonHandle{})

	for {
		if err := n.handleCommand(r, dec, enc); err != nil {
			switch {
			case err == ErrTransportShutdown:
				n.logger.WithField("error", err).Debug("Dropping command on shutdown")
			case err != io.EOF:
				n.logger.WithField("error", err).Error("Failed to decode incoming command")
			}
			return
		}
		if err := w.Flush(); err != nil {
			n.logger.WithField("error", err).Error("Failed to flush response")
			return
		}
	}
}

// handleCommand is used to decode and dispatch a single command.
func (n *NetworkTransport) handleCommand(r *bufio.Reader, dec *codec.Decoder, enc *codec.Encoder) error {
	rpcType, err := r.ReadByte()
	if err != nil {
		return err
	}

	respCh := make(chan RPCResponse, 1)
	rpc := RPC{
		RespChan: respCh,
	}

	switch rpcType {
	case rpcHop:
		var req HopRequest
		if err := dec.Decode(&req); err != nil {
			return err
		}
		rpc.Command = &req
	default:
		return fmt.Errorf("unknown rpc type %d", rpcType)
	}

	select {
	case n.consumeCh <- rpc:
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	select {
	case resp := <-respCh:
		respErr := ""
		if resp.Error != nil {
			respErr = resp.Error.Error()
		}
		if err := enc.Encode(respErr); err != nil {
			return err
		}

		if err := enc.Encode(resp.Response); err != nil {
			return err
		}
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	return nil
}

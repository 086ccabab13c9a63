// Copyright (c) 2013-2018 The btcsuite developers
// Copyright (c) 2016-2018 The Decred developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/jaxnet/cnoted/network/levin"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

const (
	// outputBufferSize is the number of elements the output channels use.
	outputBufferSize = 50

	// DefaultInvokeTimeout is how long an invoke waits for its response
	// when the config does not say otherwise.
	DefaultInvokeTimeout = 2 * time.Minute

	// finalWriteTimeout bounds the write of the last frame sent before a
	// disconnect.
	finalWriteTimeout = 5 * time.Second
)

var (
	// nodeCount is the total number of peer connections made since
	// startup and is used to assign an id to a peer.
	nodeCount int32

	// ErrDisconnected is returned by operations on a closed connection.
	ErrDisconnected = errors.New("peer is disconnected")
)

// State is the synchronization state of a connection.
type State int32

const (
	StateBeforeHandshake State = iota
	StateSynchronizing
	StateIdle
	StateNormal
	StateSyncRequired
	StatePoolSyncRequired
	StateShutdown
)

var stateStrings = map[State]string{
	StateBeforeHandshake:  "before_handshake",
	StateSynchronizing:    "synchronizing",
	StateIdle:             "idle",
	StateNormal:           "normal",
	StateSyncRequired:     "sync_required",
	StatePoolSyncRequired: "pool_sync_required",
	StateShutdown:         "shutdown",
}

// String returns the State in human-readable form.
func (s State) String() string {
	if str, ok := stateStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("Unknown State (%d)", int32(s))
}

// ConnectionContext is the sync bookkeeping of one connection.  It is owned
// by the protocol handler, which serializes access to it.
type ConnectionContext struct {
	// PeerID is the id the remote node announced in its handshake, zero
	// before.
	PeerID uint64

	// RemotePort is the port the remote node listens on, zero if none.
	RemotePort uint32

	// Version is the p2p version the remote node announced.
	Version uint8

	// RemoteHeight is the block count the remote node last reported.
	RemoteHeight uint32

	// LastResponseHeight is the height of the last block id the remote
	// node sent in a chain entry.  HaveResponse tells whether one arrived.
	LastResponseHeight uint32
	HaveResponse       bool

	// NeededObjects are block ids announced by the remote node that are
	// still to be requested.
	NeededObjects []chainhash.Hash

	// RequestedObjects are block ids requested and not yet delivered.
	RequestedObjects map[chainhash.Hash]struct{}
}

// RequestHandler processes an inbound request.  For requests expecting a
// response, the returned payload and code are sent back.  An error drops
// the connection.
type RequestHandler func(p *Peer, msg *levin.Message) (payload []byte, returnCode int32, err error)

// Config is the connection configuration.
type Config struct {
	// MaxPacketSize bounds the payload of inbound frames.
	MaxPacketSize uint64

	// Version is the frame version written on outbound frames.
	Version uint32

	// InvokeTimeout bounds the wait for a response.
	InvokeTimeout time.Duration

	// OnRequest handles inbound requests and notifications.
	OnRequest RequestHandler

	// OnCallback runs after RequestCallback, once the message being handled
	// is answered.
	OnCallback func(p *Peer)
}

// Peer is one Levin connection to a remote node.
type Peer struct {
	// The following variables must only be used atomically.
	connected  int32
	disconnect int32
	state      int32
	callback   int32

	id      int32
	inbound bool
	addr    string
	cfg     Config
	conn    *levin.Conn
	netConn net.Conn

	timeConnected time.Time

	ctx ConnectionContext

	pendingMtx sync.Mutex
	pending    map[uint32][]chan *levin.Message

	outputQueue   chan *levin.Message
	sendQueue     chan *levin.Message
	sendDoneQueue chan struct{}
	queueQuit     chan struct{}
	quit          chan struct{}
}

// NewInboundPeer returns a peer for an accepted connection.  Call Start to
// begin processing messages.
func NewInboundPeer(cfg *Config, conn net.Conn) *Peer {
	return newPeerBase(cfg, conn, true)
}

// NewOutboundPeer returns a peer for a dialed connection.
func NewOutboundPeer(cfg *Config, conn net.Conn) *Peer {
	return newPeerBase(cfg, conn, false)
}

func newPeerBase(origCfg *Config, conn net.Conn, inbound bool) *Peer {
	cfg := *origCfg
	if cfg.InvokeTimeout <= 0 {
		cfg.InvokeTimeout = DefaultInvokeTimeout
	}
	if cfg.Version == 0 {
		cfg.Version = levin.ProtocolVersion1
	}

	p := &Peer{
		id:            atomic.AddInt32(&nodeCount, 1),
		inbound:       inbound,
		addr:          conn.RemoteAddr().String(),
		cfg:           cfg,
		conn:          levin.NewConn(conn, cfg.MaxPacketSize, cfg.Version),
		netConn:       conn,
		timeConnected: time.Now(),
		pending:       make(map[uint32][]chan *levin.Message),
		outputQueue:   make(chan *levin.Message, outputBufferSize),
		sendQueue:     make(chan *levin.Message, 1),
		sendDoneQueue: make(chan struct{}, 1),
		queueQuit:     make(chan struct{}),
		quit:          make(chan struct{}),
	}
	p.ctx.RequestedObjects = make(map[chainhash.Hash]struct{})
	return p
}

// String returns the peer's address and directional information.
func (p *Peer) String() string {
	dir := "outbound"
	if p.inbound {
		dir = "inbound"
	}
	return fmt.Sprintf("%s (%s)", p.addr, dir)
}

// ID returns the local connection id.
func (p *Peer) ID() int32 {
	return p.id
}

// Addr returns the remote address.
func (p *Peer) Addr() string {
	return p.addr
}

// RemoteIP returns the remote IPv4 address, or nil for other transports.
func (p *Peer) RemoteIP() net.IP {
	if tcp, ok := p.netConn.RemoteAddr().(*net.TCPAddr); ok {
		return tcp.IP.To4()
	}
	host, _, err := net.SplitHostPort(p.addr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host).To4()
}

// Inbound reports whether the remote node connected to us.
func (p *Peer) Inbound() bool {
	return p.inbound
}

// TimeConnected returns when the connection was set up.
func (p *Peer) TimeConnected() time.Time {
	return p.timeConnected
}

// BytesSent returns the total number of bytes written to the connection.
func (p *Peer) BytesSent() uint64 {
	return p.conn.BytesSent()
}

// BytesReceived returns the total number of bytes read from the connection.
func (p *Peer) BytesReceived() uint64 {
	return p.conn.BytesReceived()
}

// Context returns the sync bookkeeping of the connection.
func (p *Peer) Context() *ConnectionContext {
	return &p.ctx
}

// State returns the synchronization state.
//
// This function is safe for concurrent access.
func (p *Peer) State() State {
	return State(atomic.LoadInt32(&p.state))
}

// SetState moves the connection to state.  Shutdown is final.
//
// This function is safe for concurrent access.
func (p *Peer) SetState(state State) {
	for {
		old := atomic.LoadInt32(&p.state)
		if State(old) == StateShutdown {
			return
		}
		if atomic.CompareAndSwapInt32(&p.state, old, int32(state)) {
			return
		}
	}
}

// Start launches the read, queue and write goroutines.
func (p *Peer) Start() {
	if !atomic.CompareAndSwapInt32(&p.connected, 0, 1) {
		return
	}
	log.Debug().Str("peer", p.String()).Int32("id", p.id).Msg("connection started")

	go p.inHandler()
	go p.queueHandler()
	go p.outHandler()
}

// Connected returns whether or not the peer is currently connected.
//
// This function is safe for concurrent access.
func (p *Peer) Connected() bool {
	return atomic.LoadInt32(&p.connected) != 0 &&
		atomic.LoadInt32(&p.disconnect) == 0
}

// Disconnect closes the connection and moves it to the shutdown state.
// Calling it more than once has no effect.
func (p *Peer) Disconnect() {
	if atomic.AddInt32(&p.disconnect, 1) != 1 {
		return
	}

	log.Debug().Str("peer", p.String()).Msg("disconnecting")
	p.SetState(StateShutdown)
	_ = p.conn.Close()
	close(p.quit)
}

// WaitForDisconnect waits until the peer has completely disconnected.
func (p *Peer) WaitForDisconnect() {
	<-p.quit
}

// RequestCallback schedules the OnCallback hook.  It runs once the inbound
// request being processed has been answered, or at the next ProcessCallback.
//
// This function is safe for concurrent access.
func (p *Peer) RequestCallback() {
	atomic.StoreInt32(&p.callback, 1)
}

// ProcessCallback runs a scheduled OnCallback hook, if any.
func (p *Peer) ProcessCallback() {
	if !atomic.CompareAndSwapInt32(&p.callback, 1, 0) {
		return
	}
	if p.cfg.OnCallback != nil && p.Connected() {
		p.cfg.OnCallback(p)
	}
}

// Notify queues a request nobody waits a response for.
//
// This function is safe for concurrent access.
func (p *Peer) Notify(command uint32, payload []byte) {
	p.queueMessage(levin.NewRequest(command, payload, false))
}

// Invoke sends a request and waits for the response to it.  Responses are
// matched by command in request order.
//
// This function is safe for concurrent access.
func (p *Peer) Invoke(ctx context.Context, command uint32, payload []byte) ([]byte, error) {
	respChan := make(chan *levin.Message, 1)
	p.pendingMtx.Lock()
	p.pending[command] = append(p.pending[command], respChan)
	p.pendingMtx.Unlock()

	p.queueMessage(levin.NewRequest(command, payload, true))

	timer := time.NewTimer(p.cfg.InvokeTimeout)
	defer timer.Stop()

	select {
	case resp := <-respChan:
		if resp.Header.ReturnCode != levin.ReturnOK {
			return nil, fmt.Errorf("command %d failed with code %d", command, resp.Header.ReturnCode)
		}
		return resp.Payload, nil

	case <-timer.C:
		p.dropWaiter(command, respChan)
		return nil, fmt.Errorf("command %d timed out after %v", command, p.cfg.InvokeTimeout)

	case <-ctx.Done():
		p.dropWaiter(command, respChan)
		return nil, ctx.Err()

	case <-p.quit:
		return nil, ErrDisconnected
	}
}

func (p *Peer) dropWaiter(command uint32, respChan chan *levin.Message) {
	p.pendingMtx.Lock()
	defer p.pendingMtx.Unlock()
	waiters := p.pending[command]
	for i, c := range waiters {
		if c == respChan {
			p.pending[command] = append(waiters[:i], waiters[i+1:]...)
			return
		}
	}
}

// deliverResponse hands a response to the oldest waiter of its command.
func (p *Peer) deliverResponse(msg *levin.Message) bool {
	p.pendingMtx.Lock()
	defer p.pendingMtx.Unlock()
	waiters := p.pending[msg.Header.Command]
	if len(waiters) == 0 {
		return false
	}
	waiters[0] <- msg
	p.pending[msg.Header.Command] = waiters[1:]
	return true
}

func (p *Peer) queueMessage(msg *levin.Message) {
	// Avoid risk of deadlock if goroutine already exited.  The goroutine
	// we will be sending to hangs around until it knows for a fact that
	// it is marked as disconnected and *then* it drains the channels.
	if !p.Connected() {
		return
	}
	select {
	case p.outputQueue <- msg:
	case <-p.quit:
	}
}

// writeFinal writes msg straight to the socket, bypassing the output queue,
// which is dropped on disconnect.
func (p *Peer) writeFinal(msg *levin.Message) {
	_ = p.netConn.SetWriteDeadline(time.Now().Add(finalWriteTimeout))
	if err := p.conn.WriteMessage(msg); err != nil {
		log.Debug().Str("peer", p.String()).Err(err).Msg("can't send final frame")
	}
}

// shouldLogReadError reports whether a read error is worth logging, which
// is not the case for the remote or local side closing the connection.
func (p *Peer) shouldLogReadError(err error) bool {
	if atomic.LoadInt32(&p.disconnect) != 0 {
		return false
	}
	if err == io.EOF || errors.Is(err, net.ErrClosed) {
		return false
	}
	if opErr, ok := err.(*net.OpError); ok && !opErr.Temporary() {
		return false
	}
	return true
}

// inHandler handles all incoming messages for the peer.  It must be run as a
// goroutine.
func (p *Peer) inHandler() {
	defer p.Disconnect()

	for atomic.LoadInt32(&p.disconnect) == 0 {
		msg, err := p.conn.ReadMessage()
		if err != nil {
			if p.shouldLogReadError(err) {
				if wire.IsDecodeError(err) {
					log.Warn().Str("peer", p.String()).Err(err).Msg("malformed frame")
				} else {
					log.Debug().Str("peer", p.String()).Err(err).Msg("can't read frame")
				}
			}
			return
		}

		if msg.Header.IsResponse() {
			if !p.deliverResponse(msg) {
				log.Warn().Str("peer", p.String()).Uint32("command", msg.Header.Command).
					Msg("unexpected response, disconnecting")
				return
			}
			continue
		}

		var (
			payload []byte
			code    = levin.ErrConnectionHandlerNotDefined
		)
		if p.cfg.OnRequest != nil {
			payload, code, err = p.cfg.OnRequest(p, msg)
		}
		if err != nil {
			log.Info().Str("peer", p.String()).Uint32("command", msg.Header.Command).Err(err).
				Msg("request failed, disconnecting")
			if msg.Header.ExpectResponse {
				p.writeFinal(levin.NewResponse(msg.Header.Command, levin.ErrFormat, nil))
			}
			return
		}
		if msg.Header.ExpectResponse {
			p.queueMessage(levin.NewResponse(msg.Header.Command, code, payload))
		}
		p.ProcessCallback()
	}
}

// queueHandler handles the queuing of outgoing data for the peer.  It runs as
// a muxer between the callers queueing messages and the outHandler writing
// them, so a slow socket never blocks a caller.  It must be run as a
// goroutine.
func (p *Peer) queueHandler() {
	pendingMsgs := list.New()

	// We keep the waiting flag so that we know if we have a message queued
	// to the outHandler or not.
	waiting := false

out:
	for {
		select {
		case msg := <-p.outputQueue:
			if !waiting {
				p.sendQueue <- msg
				waiting = true
			} else {
				pendingMsgs.PushBack(msg)
			}

		// This channel is notified when a message has been sent across
		// the network socket.
		case <-p.sendDoneQueue:
			next := pendingMsgs.Front()
			if next == nil {
				waiting = false
				continue
			}
			p.sendQueue <- pendingMsgs.Remove(next).(*levin.Message)

		case <-p.quit:
			break out
		}
	}

cleanup:
	for {
		select {
		case <-p.outputQueue:
		default:
			break cleanup
		}
	}
	close(p.queueQuit)
}

// outHandler writes queued messages to the socket.  It must be run as a
// goroutine.
func (p *Peer) outHandler() {
out:
	for {
		select {
		case msg := <-p.sendQueue:
			if err := p.conn.WriteMessage(msg); err != nil {
				if atomic.LoadInt32(&p.disconnect) == 0 {
					log.Debug().Str("peer", p.String()).Err(err).Msg("can't send frame")
				}
				p.Disconnect()
				continue
			}
			p.sendDoneQueue <- struct{}{}

		case <-p.quit:
			break out
		}
	}

	<-p.queueQuit

	// Drain any wait channels before we go away so we don't leave something
	// waiting for us.
cleanup:
	for {
		select {
		case <-p.sendQueue:
		default:
			break cleanup
		}
	}
}

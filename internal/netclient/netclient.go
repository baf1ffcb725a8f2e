/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package netclient implements a single-threaded, poll-driven, multiplexed
request/response engine over FlyMQ's binary wire protocol
(internal/protocol). It is FlyMQ's analogue of a Kafka-style NetworkClient:
one goroutine owns a Client, drives every connection's I/O from inside
Poll, and nothing happens on a connection except in response to a Ready,
Send, or Poll call from that goroutine.

FlyMQ's wire header (Magic|Version|Op|Flags|Length, see
internal/protocol/protocol.go) carries no correlation field, unlike the
Kafka protocol this design is modeled on. Requests are matched to responses
by strict FIFO order per connection instead: protocol.go's request/response
framing never reorders replies on a single TCP connection, so a per-node
in-flight queue popped front-to-back is sufficient and correlation IDs are
tracked purely client-side for caller bookkeeping (see conn.go).
*/
package netclient

import (
	"crypto/tls"
	"fmt"
	"time"

	"flymq/internal/logging"
	"flymq/internal/protocol"
)

// Node identifies one FlyMQ broker endpoint.
type Node struct {
	ID   string
	Host string
	Port int
}

// Addr returns the dialable "host:port" address for the node.
func (n Node) Addr() string {
	return fmt.Sprintf("%s:%d", n.Host, n.Port)
}

// ConnState is the lifecycle state of one node's connection.
type ConnState int

const (
	// Disconnected means no connection exists and none is in progress.
	Disconnected ConnState = iota
	// Connecting means a dial is in progress.
	Connecting
	// Connected means the connection is established and usable.
	Connected
	// BlackedOut means a recent connection attempt failed; the node is
	// ineligible for new attempts until its backoff deadline passes.
	BlackedOut
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case BlackedOut:
		return "blacked-out"
	default:
		return "unknown"
	}
}

// Config tunes Client behavior. Zero-value fields are replaced with
// DefaultConfig's values by New.
type Config struct {
	ConnectTimeout          time.Duration
	RequestTimeout          time.Duration
	ReconnectBackoffMin     time.Duration
	ReconnectBackoffMax     time.Duration
	MaxInFlightPerNode      int
	MetadataRefreshInterval time.Duration
	MetadataRefreshBackoff  time.Duration
	TLSConfig               *tls.Config
	Logger                  *logging.Logger
}

// DefaultConfig returns the configuration flymq's own clients use.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:          10 * time.Second,
		RequestTimeout:          30 * time.Second,
		ReconnectBackoffMin:     50 * time.Millisecond,
		ReconnectBackoffMax:     1 * time.Second,
		MaxInFlightPerNode:      16,
		MetadataRefreshInterval: 5 * time.Minute,
		MetadataRefreshBackoff:  100 * time.Millisecond,
		Logger:                  logging.NewLogger("netclient"),
	}
}

func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.ReconnectBackoffMin <= 0 {
		c.ReconnectBackoffMin = d.ReconnectBackoffMin
	}
	if c.ReconnectBackoffMax <= 0 {
		c.ReconnectBackoffMax = d.ReconnectBackoffMax
	}
	if c.MaxInFlightPerNode <= 0 {
		c.MaxInFlightPerNode = d.MaxInFlightPerNode
	}
	if c.MetadataRefreshInterval <= 0 {
		c.MetadataRefreshInterval = d.MetadataRefreshInterval
	}
	if c.MetadataRefreshBackoff <= 0 {
		c.MetadataRefreshBackoff = d.MetadataRefreshBackoff
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
}

// Request is a single outbound wire request.
type Request struct {
	Node Node
	Op   protocol.OpCode
	Payload []byte

	// ExpectsResponse marks whether send should queue this request to wait
	// for a wire reply. False (the zero value) means fire-and-forget: send
	// retires the request immediately with a synthetic success Response as
	// soon as the write completes, and no FIFO slot is ever occupied for it.
	ExpectsResponse bool

	// CorrelationID is assigned by Send and is for caller bookkeeping only;
	// it never crosses the wire (see package doc).
	CorrelationID uint64
	CreatedAt     time.Time

	// Callback, if set, is invoked from inside Poll when the matching
	// Response is ready, in addition to that Response being returned from
	// Poll's slice.
	Callback func(*Response)
}

// Response is the outcome of one Request: either a wire reply, a
// synthetic disconnect (Err set, Disconnected true), or a synthetic
// timeout (Err set, TimedOut true).
type Response struct {
	Request      *Request
	Op           protocol.OpCode
	Payload      []byte
	Err          error
	Disconnected bool
	TimedOut     bool
}

// ErrIllegalState is returned by Send when called against a node that is
// not Ready. Poll never returns it: a connection is only read while a
// request is queued on it, and responses carry no correlation field that
// could be checked against the request they are matched to.
// Callers hitting it are expected to rebuild the Client rather than retry
// in place.
var ErrIllegalState = fmt.Errorf("netclient: illegal state")

// ErrUnknownNode is returned by operations referencing a Node the Client
// has never seen via bootstrap or metadata refresh.
var ErrUnknownNode = fmt.Errorf("netclient: unknown node")

// Client is a single-threaded, poll-driven connection multiplexer. All of
// its exported methods are meant to be called from one goroutine; nothing
// inside Client uses a mutex because nothing needs to.
type Client struct {
	cfg     Config
	conns   map[string]*nodeConn // by Node.ID
	wakeup  chan struct{}
	updater metadataUpdater

	// pending holds synthetic Responses produced outside of Poll (e.g. by
	// Close), surfaced at the start of the next Poll call.
	pending []*Response
}

// New builds a Client seeded with the given bootstrap nodes. Additional
// nodes discovered via cluster metadata are added lazily as Send/Ready
// reference them.
func New(bootstrap []Node, cfg Config) *Client {
	cfg.fillDefaults()
	c := &Client{
		cfg:    cfg,
		conns:  make(map[string]*nodeConn, len(bootstrap)),
		wakeup: make(chan struct{}, 1),
	}
	for _, n := range bootstrap {
		c.conns[n.ID] = newNodeConn(n, cfg)
	}
	c.updater = newDefaultMetadataUpdater(c, bootstrap)
	return c
}

// Wakeup interrupts a blocking Poll call from another goroutine (e.g. a
// caller enqueuing work concurrently with the driver loop). Safe to call
// even if nothing is currently polling; the signal is coalesced.
func (c *Client) Wakeup() {
	select {
	case c.wakeup <- struct{}{}:
	default:
	}
}

// Close tears down the connection to node, if any, failing every
// in-flight request on it with a synthetic disconnect Response surfaced
// by the next Poll call.
func (c *Client) Close(node Node) {
	nc, ok := c.conns[node.ID]
	if !ok {
		return
	}
	c.pending = append(c.pending, nc.closeWithDisconnect(c.cfg.Logger)...)
	c.updater.maybeHandleDisconnection(node)
}

// CloseAll tears down every connection, failing all in-flight requests.
func (c *Client) CloseAll() {
	for _, nc := range c.conns {
		c.pending = append(c.pending, nc.closeWithDisconnect(c.cfg.Logger)...)
		c.updater.maybeHandleDisconnection(nc.node)
	}
}

// nodeFor resolves a Node by ID, registering it if unseen.
func (c *Client) nodeFor(node Node) *nodeConn {
	nc, ok := c.conns[node.ID]
	if !ok {
		nc = newNodeConn(node, c.cfg)
		c.conns[node.ID] = nc
	}
	return nc
}

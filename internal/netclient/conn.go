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

package netclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"flymq/internal/logging"
	"flymq/internal/protocol"
)

func dialTLS(dialer net.Dialer, addr string, cfg *tls.Config) (net.Conn, error) {
	return tls.DialWithDialer(&dialer, "tcp", addr, cfg)
}

func errDisconnected(n Node) error {
	return fmt.Errorf("netclient: disconnected from %s (%s)", n.ID, n.Addr())
}

func errTimedOut(n Node) error {
	return fmt.Errorf("netclient: request to %s (%s) timed out", n.ID, n.Addr())
}

// inFlight is one request awaiting its response on a connection's FIFO
// queue.
type inFlight struct {
	req  *Request
	sent time.Time
}

// connectOutcome is what a dial goroutine reports back once it finishes.
type connectOutcome struct {
	conn net.Conn
	err  error
}

// nodeConn owns one TCP connection to one node, plus its FIFO in-flight
// queue and backoff state. Every field is touched only from the Client's
// single driver goroutine, except pendingConnect's channel, which a dial
// goroutine writes to exactly once and the driver goroutine alone reads.
type nodeConn struct {
	node  Node
	cfg   Config
	conn  net.Conn
	state ConnState

	queue []*inFlight // front = oldest unanswered request

	lastAttempt      time.Time
	reconnectBackoff time.Duration
	blackedOutUntil  time.Time

	// pendingConnect is non-nil while a dial goroutine is in flight; the
	// driver goroutine drains it non-blockingly via pollConnect.
	pendingConnect chan connectOutcome

	nextCorrelationID uint64
}

func newNodeConn(node Node, cfg Config) *nodeConn {
	return &nodeConn{
		node:             node,
		cfg:              cfg,
		state:            Disconnected,
		reconnectBackoff: cfg.ReconnectBackoffMin,
	}
}

// isReady reports whether the connection can accept another Send right
// now, with no side effects.
func (nc *nodeConn) isReady(now time.Time) bool {
	if nc.state == BlackedOut && now.Before(nc.blackedOutUntil) {
		return false
	}
	return nc.state == Connected && len(nc.queue) < nc.cfg.MaxInFlightPerNode
}

// ready reports readiness like isReady, but first drains any completed
// async dial and, if the node is idle (Disconnected, or BlackedOut whose
// backoff has elapsed), kicks off a new one. Mirrors the Kafka
// NetworkClient split between ready() (may initiate connects) and
// isReady() (pure predicate) — and, like that split, never blocks: only
// poll's own I/O step may block the driver goroutine.
func (nc *nodeConn) ready(now time.Time, logger *logging.Logger) bool {
	nc.pollConnect(now, logger)
	if nc.state == BlackedOut && !now.Before(nc.blackedOutUntil) {
		nc.state = Disconnected
	}
	if nc.state == Disconnected {
		nc.initiateConnect(now, logger)
	}
	return nc.isReady(now)
}

// initiateConnect starts the dial on its own goroutine and returns
// immediately; pollConnect later picks up the result. This keeps the
// driver goroutine from ever blocking on dialer.Dial/tls.DialWithDialer,
// which can take up to ConnectTimeout on an unreachable node.
func (nc *nodeConn) initiateConnect(now time.Time, logger *logging.Logger) {
	nc.state = Connecting
	nc.lastAttempt = now

	result := make(chan connectOutcome, 1)
	nc.pendingConnect = result

	node := nc.node
	tlsConfig := nc.cfg.TLSConfig
	dialer := net.Dialer{Timeout: nc.cfg.ConnectTimeout}
	go func() {
		var conn net.Conn
		var err error
		if tlsConfig != nil {
			conn, err = dialTLS(dialer, node.Addr(), tlsConfig)
		} else {
			conn, err = dialer.Dial("tcp", node.Addr())
		}
		result <- connectOutcome{conn: conn, err: err}
	}()
}

// pollConnect drains a completed dial without blocking, moving the
// connection to Connected on success or into backoff on failure. Safe to
// call every tick regardless of state; it is a no-op unless a dial
// goroutine has actually finished.
func (nc *nodeConn) pollConnect(now time.Time, logger *logging.Logger) {
	if nc.state != Connecting || nc.pendingConnect == nil {
		return
	}
	select {
	case outcome := <-nc.pendingConnect:
		nc.pendingConnect = nil
		if outcome.err != nil {
			logger.Warn("connect failed", "node", nc.node.ID, "addr", nc.node.Addr(), "err", outcome.err)
			nc.blackOut(now)
			return
		}
		nc.conn = outcome.conn
		nc.state = Connected
		nc.reconnectBackoff = nc.cfg.ReconnectBackoffMin
	default:
		// Dial still in flight; nothing to do this tick.
	}
}

func (nc *nodeConn) blackOut(now time.Time) {
	nc.state = BlackedOut
	nc.blackedOutUntil = now.Add(nc.reconnectBackoff)
	nc.reconnectBackoff *= 2
	if nc.reconnectBackoff > nc.cfg.ReconnectBackoffMax {
		nc.reconnectBackoff = nc.cfg.ReconnectBackoffMax
	}
}

// send writes req's header and payload. If req expects a response it is
// pushed onto the FIFO in-flight queue for pollReceive to match later;
// otherwise it is a completed send — it retires immediately and send
// returns a synthetic success Response rather than queuing anything.
// Returns ErrIllegalState if the connection isn't ready. If the write
// fails, the connection is torn down and the synthetic disconnect
// Responses for every request still queued are returned with the error.
func (nc *nodeConn) send(req *Request, now time.Time) ([]*Response, error) {
	if !nc.isReady(now) {
		return nil, ErrIllegalState
	}
	nc.nextCorrelationID++
	req.CorrelationID = nc.nextCorrelationID
	req.CreatedAt = now

	if err := protocol.WriteMessage(nc.conn, req.Op, req.Payload); err != nil {
		return nc.closeWithDisconnect(nc.cfg.Logger), err
	}
	if !req.ExpectsResponse {
		return []*Response{{Request: req}}, nil
	}
	nc.queue = append(nc.queue, &inFlight{req: req, sent: now})
	return nil, nil
}

// pollDeadline bounds how long pollReceive blocks waiting for bytes that
// may never come this round; it is intentionally short so Poll can cycle
// through every node's connection within its own timeout budget.
const pollDeadline = 2 * time.Millisecond

// pollReceive attempts one read with a short deadline: on a would-block
// timeout it returns nil (nothing ready this round) rather than stalling
// the single driver goroutine, letting Poll cycle through every node's
// connection in one pass. A successful read returns a single matched
// Response; any other read error tears down the connection and returns a
// synthetic disconnect Response for every request still queued (FIFO
// order can no longer be trusted once one read on the connection fails).
func (nc *nodeConn) pollReceive(now time.Time, logger *logging.Logger) []*Response {
	if nc.state != Connected || len(nc.queue) == 0 {
		return nil
	}

	nc.conn.SetReadDeadline(now.Add(pollDeadline))
	msg, err := protocol.ReadMessage(nc.conn)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil
		}
		logger.Warn("read failed", "node", nc.node.ID, "err", err)
		return nc.closeWithDisconnect(logger)
	}

	oldest := nc.popOldest()
	return []*Response{{
		Request: oldest.req,
		Op:      msg.Header.Op,
		Payload: msg.Payload,
	}}
}

// popOldest removes and returns the oldest unanswered request.
func (nc *nodeConn) popOldest() *inFlight {
	f := nc.queue[0]
	nc.queue = nc.queue[1:]
	return f
}

// closeWithDisconnect closes the underlying socket (if any), resets state
// to Disconnected, and returns every still-queued request as a synthetic
// disconnect Response for the caller to surface via Poll.
func (nc *nodeConn) closeWithDisconnect(logger *logging.Logger) []*Response {
	if nc.conn != nil {
		nc.conn.Close()
		nc.conn = nil
	}
	nc.state = Disconnected

	var out []*Response
	for _, f := range nc.queue {
		out = append(out, &Response{
			Request:      f.req,
			Disconnected: true,
			Err:          errDisconnected(nc.node),
		})
	}
	nc.queue = nil
	return out
}

// expireTimeouts checks the front of the FIFO queue (requests are sent
// and answered in order, so the oldest is always the first to time out).
// Once that oldest request is older than RequestTimeout it closes the
// connection, since the FIFO ordering invariant can no longer be trusted
// for what follows, and returns a synthetic TimedOut Response for every
// request still queued on it, younger ones included.
func (nc *nodeConn) expireTimeouts(now time.Time, logger *logging.Logger) []*Response {
	if len(nc.queue) == 0 {
		return nil
	}
	oldest := nc.queue[0]
	if now.Sub(oldest.sent) < nc.cfg.RequestTimeout {
		return nil
	}
	logger.Warn("request timed out", "node", nc.node.ID, "op", oldest.req.Op)
	responses := nc.closeWithDisconnect(logger)
	for _, r := range responses {
		r.Disconnected = false
		r.TimedOut = true
		r.Err = errTimedOut(nc.node)
	}
	nc.blackOut(now)
	return responses
}

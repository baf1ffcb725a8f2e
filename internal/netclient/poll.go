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

import "time"

// Ready reports whether node can accept a Send right now. Unlike IsReady,
// it may have the side effect of kicking off a connection attempt if the
// node is currently idle, so that repeated polling of Ready eventually
// converges on a connected state.
func (c *Client) Ready(node Node, now time.Time) bool {
	return c.nodeFor(node).ready(now, c.cfg.Logger)
}

// IsReady is a pure predicate: it never dials or otherwise mutates state.
// It also honors metadata priority: while a metadata refresh is due, every
// node reports not-ready so the refresh gets head-of-line over ordinary
// sends (see metadataUpdater.isUpdateDue).
func (c *Client) IsReady(node Node, now time.Time) bool {
	if c.updater.isUpdateDue(now) {
		return false
	}
	nc, ok := c.conns[node.ID]
	if !ok {
		return false
	}
	return nc.isReady(now)
}

// Send enqueues req on its node's connection. The node must be Ready (call
// Ready first); otherwise Send returns ErrIllegalState without mutating
// anything. A request with ExpectsResponse false retires immediately: its
// synthetic success Response is queued for the next Poll call rather than
// returned here, matching every other Response's delivery path.
func (c *Client) Send(req *Request, now time.Time) error {
	nc := c.nodeFor(req.Node)
	responses, err := nc.send(req, now)
	c.pending = append(c.pending, responses...)
	return err
}

// leastLoadedReady returns the already-Ready node with the fewest in-flight
// requests, with no side effects. ok is false if no node is currently Ready.
func (c *Client) leastLoadedReady(now time.Time) (*nodeConn, bool) {
	var best *nodeConn
	for _, nc := range c.conns {
		if !nc.isReady(now) {
			continue
		}
		if best == nil || len(nc.queue) < len(best.queue) {
			best = nc
		}
	}
	return best, best != nil
}

// LeastLoadedNode returns the Ready node with the fewest in-flight
// requests, preferring it over ones with a deeper queue so load spreads
// evenly across the cluster. If no node is currently Ready, it nudges every
// idle (Disconnected or backoff-expired) node toward Connected, mirroring
// Ready's side effect, so a caller spinning on LeastLoadedNode across
// several Poll calls eventually gets a usable node — but, since connecting
// is asynchronous, a single call never blocks waiting for a dial to finish.
func (c *Client) LeastLoadedNode(now time.Time) (Node, bool) {
	if nc, ok := c.leastLoadedReady(now); ok {
		return nc.node, true
	}

	for _, nc := range c.conns {
		if nc.ready(now, c.cfg.Logger) {
			return nc.node, true
		}
	}
	return Node{}, false
}

// nextRequestDeadline returns the time remaining until the oldest in-flight
// request across every connection would time out, or noDeadline if nothing
// is in flight anywhere. Poll uses this to clip its own wait so a timeout
// is never discovered later than necessary.
func (c *Client) nextRequestDeadline(now time.Time) time.Duration {
	best := noDeadline
	for _, nc := range c.conns {
		if len(nc.queue) == 0 {
			continue
		}
		remaining := c.cfg.RequestTimeout - now.Sub(nc.queue[0].sent)
		if remaining < 0 {
			remaining = 0
		}
		if remaining < best {
			best = remaining
		}
	}
	return best
}

// noDeadline stands in for "nothing bounds this wait" when computing the
// min() of timeout/metadata_timeout/request_timeout; real Poll callers
// never wait anywhere near this long.
const noDeadline = 24 * time.Hour

// Poll drives every connection's I/O for up to timeout and returns every
// Response that completed during the call. Step order within one Poll
// call, matching the contract this package is specified against:
//
//  0. metadata refresh  — maybeUpdate runs first so its returned delay can
//     clip this call's wait budget alongside timeout and the nearest
//     in-flight request's own deadline.
//  1. completed sends   — nothing to do here beyond what Send already did;
//     a "completed send" that doesn't expect a response was already
//     retired by send() into c.pending.
//  2. completed receives — drain one message per ready connection.
//  3. disconnections     — connections a receive or send already tore down
//     surface their synthetic Responses here.
//  4. new connections    — idle nodes the client already knows
//     (Disconnected, or BlackedOut with an elapsed backoff) get a Ready()
//     nudge so future polls can use them, and any dial already in flight
//     is drained non-blockingly.
//  5. timeouts           — requests older than RequestTimeout are failed
//     and their connection is torn down.
func (c *Client) Poll(timeout time.Duration, now time.Time) ([]*Response, error) {
	metadataTimeout := c.updater.maybeUpdate(now)

	wait := timeout
	if metadataTimeout < wait {
		wait = metadataTimeout
	}
	if requestTimeout := c.nextRequestDeadline(now); requestTimeout < wait {
		wait = requestTimeout
	}
	deadline := now.Add(wait)

	var out []*Response
	if len(c.pending) > 0 {
		out = append(out, c.pending...)
		c.pending = nil
	}

	for _, nc := range c.conns {
		// Step 4 (connection half): drain any dial that finished since the
		// last tick, whatever this connection's current state.
		nc.pollConnect(now, c.cfg.Logger)

		// Step 2: completed receives (also handles step 3's
		// disconnections inline, since a failed receive tears the
		// connection down itself).
		responses := nc.pollReceive(now, c.cfg.Logger)
		out = append(out, responses...)
		for _, r := range responses {
			if r.Disconnected {
				c.updater.maybeHandleDisconnection(nc.node)
			}
		}
	}

	// Step 4 (new-connection half): opportunistically nudge idle/backoff-
	// expired nodes so a subsequent Send doesn't have to pay dial latency
	// inline.
	for _, nc := range c.conns {
		if nc.state == Disconnected || (nc.state == BlackedOut && !now.Before(nc.blackedOutUntil)) {
			nc.ready(now, c.cfg.Logger)
		}
	}

	// Step 5: timeouts.
	for _, nc := range c.conns {
		timedOut := nc.expireTimeouts(now, c.cfg.Logger)
		if len(timedOut) > 0 {
			c.updater.maybeHandleDisconnection(nc.node)
		}
		out = append(out, timedOut...)
	}

	for _, r := range out {
		if r.Request != nil && r.Request.Callback != nil {
			r.Request.Callback(r)
		}
	}

	if len(out) == 0 {
		select {
		case <-c.wakeup:
		case <-time.After(time.Until(deadline)):
		}
	}

	return out, nil
}

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
	"time"

	"flymq/internal/protocol"
)

// ClusterMetadata is the client's cached view of topic/partition
// placement, refreshed periodically (or on demand via requestUpdate) from
// a broker's OpClusterMetadata response.
type ClusterMetadata struct {
	ClusterID string
	Nodes     map[string]Node
	// leaders maps topic -> partition -> leader node ID.
	leaders   map[string]map[int32]string
	FetchedAt time.Time
}

func newClusterMetadata() *ClusterMetadata {
	return &ClusterMetadata{
		Nodes:   make(map[string]Node),
		leaders: make(map[string]map[int32]string),
	}
}

// LeaderFor returns the node currently believed to lead topic/partition.
func (m *ClusterMetadata) LeaderFor(topic string, partition int32) (Node, bool) {
	if m == nil {
		return Node{}, false
	}
	partitions, ok := m.leaders[topic]
	if !ok {
		return Node{}, false
	}
	leaderID, ok := partitions[partition]
	if !ok {
		return Node{}, false
	}
	n, ok := m.Nodes[leaderID]
	return n, ok
}

// metadataUpdater drives periodic cluster metadata refresh as part of
// Client.Poll. It is a small interface (rather than baked directly into
// Client) so tests can inject a fake updater and assert Poll's refresh
// timing without a live broker connection.
type metadataUpdater interface {
	fetchNodes() []Node
	isUpdateDue(now time.Time) bool
	// maybeUpdate attempts a refresh if one is due and returns how long
	// the caller may safely wait before calling maybeUpdate again: 0 if a
	// request was just issued; otherwise the largest of the time until the
	// next refresh falls due, the remaining backoff, and (while a request
	// is in flight) noDeadline; or the refresh backoff if a refresh was
	// due but could not be sent this round.
	maybeUpdate(now time.Time) time.Duration
	maybeHandleDisconnection(node Node)
	maybeHandleCompletedReceive(resp *Response)
	requestUpdate()
}

// defaultMetadataUpdater is the production metadataUpdater: it issues an
// OpClusterMetadata request through the owning Client's own Send/Poll
// machinery (there is no separate connection or goroutine for metadata)
// and parses the response with protocol.DecodeBinaryClusterMetadataResponse.
type defaultMetadataUpdater struct {
	client    *Client
	bootstrap []Node
	metadata  *ClusterMetadata

	lastRefresh  time.Time
	forced       bool
	inFlight     bool
	backoffUntil time.Time

	// lastNoNode records the last time maybeUpdate was due but found no
	// node to send to (sendable or even connectable).
	lastNoNode time.Time
}

func newDefaultMetadataUpdater(c *Client, bootstrap []Node) *defaultMetadataUpdater {
	return &defaultMetadataUpdater{
		client:    c,
		bootstrap: bootstrap,
		metadata:  newClusterMetadata(),
	}
}

// fetchNodes returns the nodes currently known to the client: bootstrap
// nodes plus anything learned from the last successful metadata refresh.
func (u *defaultMetadataUpdater) fetchNodes() []Node {
	seen := make(map[string]bool, len(u.bootstrap))
	nodes := make([]Node, 0, len(u.bootstrap))
	for _, n := range u.bootstrap {
		seen[n.ID] = true
		nodes = append(nodes, n)
	}
	for _, n := range u.metadata.Nodes {
		if !seen[n.ID] {
			seen[n.ID] = true
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// isUpdateDue reports whether a refresh should be attempted: either the
// refresh interval has elapsed, a forced update is pending, or no
// metadata has ever been fetched — gated by backoff after a failed
// attempt so a partitioned cluster doesn't get hammered with retries.
func (u *defaultMetadataUpdater) isUpdateDue(now time.Time) bool {
	if u.inFlight {
		return false
	}
	if now.Before(u.backoffUntil) {
		return false
	}
	if u.forced {
		return true
	}
	if u.lastRefresh.IsZero() {
		return true
	}
	return now.Sub(u.lastRefresh) >= u.client.cfg.MetadataRefreshInterval
}

// requestUpdate forces the next maybeUpdate call to refresh regardless of
// the refresh interval, e.g. after a NotLeader response suggests the
// client's routing table is stale.
func (u *defaultMetadataUpdater) requestUpdate() {
	u.forced = true
}

// dueDelay returns how long until a refresh becomes due: 0 if one already
// is (forced, never fetched, or the refresh interval has elapsed).
func (u *defaultMetadataUpdater) dueDelay(now time.Time) time.Duration {
	if u.forced || u.lastRefresh.IsZero() {
		return 0
	}
	remaining := u.client.cfg.MetadataRefreshInterval - now.Sub(u.lastRefresh)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// backoffDelay returns how long remains in a prior failure's backoff
// window, or 0 if none is active.
func (u *defaultMetadataUpdater) backoffDelay(now time.Time) time.Duration {
	remaining := u.backoffUntil.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// inFlightDelay returns noDeadline while a request is outstanding (so
// maybeUpdate never double-sends), or 0 otherwise.
func (u *defaultMetadataUpdater) inFlightDelay() time.Duration {
	if u.inFlight {
		return noDeadline
	}
	return 0
}

// maybeUpdate implements the update algorithm this package is specified
// against: compute how much of the due/backoff/in-flight delays still has
// to elapse; if none, try to send a refresh, preferring an already-Ready
// node so the refresh participates in the same load-spreading as ordinary
// traffic; if no node is sendable, nudge idle nodes toward Connected for a
// future tick and record that none was available.
func (u *defaultMetadataUpdater) maybeUpdate(now time.Time) time.Duration {
	delay := u.dueDelay(now)
	if d := u.backoffDelay(now); d > delay {
		delay = d
	}
	if d := u.inFlightDelay(); d > delay {
		delay = d
	}
	if delay > 0 {
		return delay
	}

	if nc, ok := u.client.leastLoadedReady(now); ok {
		payload := protocol.EncodeBinaryClusterMetadataRequest(&protocol.BinaryClusterMetadataRequest{})
		req := &Request{
			Node:            nc.node,
			Op:              protocol.OpClusterMetadata,
			Payload:         payload,
			ExpectsResponse: true,
			Callback:        u.maybeHandleCompletedReceive,
		}
		if err := u.client.Send(req, now); err != nil {
			u.backoffUntil = now.Add(u.client.cfg.MetadataRefreshBackoff)
			return u.client.cfg.MetadataRefreshBackoff
		}
		u.inFlight = true
		return 0
	}

	// Nothing is sendable yet: kick off a connect on any idle node so a
	// later tick can use it, without blocking this one on the dial.
	for _, nc := range u.client.conns {
		if nc.state == Disconnected || (nc.state == BlackedOut && !now.Before(nc.blackedOutUntil)) {
			nc.ready(now, u.client.cfg.Logger)
		}
	}

	u.lastNoNode = now
	return u.client.cfg.MetadataRefreshBackoff
}

// maybeHandleCompletedReceive is the Request.Callback installed by
// maybeUpdate; it parses a successful OpClusterMetadata response into
// ClusterMetadata, or applies backoff on failure.
func (u *defaultMetadataUpdater) maybeHandleCompletedReceive(resp *Response) {
	u.inFlight = false

	if resp.Err != nil || resp.Op == protocol.OpError {
		u.backoffUntil = resp.Request.CreatedAt.Add(u.client.cfg.MetadataRefreshBackoff)
		return
	}

	decoded, err := protocol.DecodeBinaryClusterMetadataResponse(resp.Payload)
	if err != nil {
		u.client.cfg.Logger.Warn("cluster metadata decode failed", "err", err)
		u.backoffUntil = resp.Request.CreatedAt.Add(u.client.cfg.MetadataRefreshBackoff)
		return
	}

	fresh := newClusterMetadata()
	fresh.ClusterID = decoded.ClusterID
	for _, t := range decoded.Topics {
		partitions := make(map[int32]string, len(t.Partitions))
		for _, p := range t.Partitions {
			if p.LeaderID == "" {
				continue
			}
			partitions[p.Partition] = p.LeaderID
			if _, ok := fresh.Nodes[p.LeaderID]; !ok {
				fresh.Nodes[p.LeaderID] = nodeFromAddr(p.LeaderID, p.LeaderAddr)
			}
		}
		fresh.leaders[t.Topic] = partitions
	}
	fresh.FetchedAt = resp.Request.CreatedAt

	u.metadata = fresh
	u.lastRefresh = resp.Request.CreatedAt
	u.forced = false
}

// maybeHandleDisconnection clears in-flight/backoff bookkeeping so the
// next Poll's maybeUpdate can retry against a different node instead of
// waiting out a refresh interval it never actually used. It does this on
// every reported disconnection: it does not check whether node is the one
// the outstanding metadata request was sent to.
func (u *defaultMetadataUpdater) maybeHandleDisconnection(node Node) {
	u.inFlight = false
	u.backoffUntil = time.Time{}
}

// nodeFromAddr builds a Node from a broker ID and "host:port" address
// string as reported in PartitionMetadata.LeaderAddr.
func nodeFromAddr(id, addr string) Node {
	host, port := splitHostPort(addr)
	return Node{ID: id, Host: host, Port: port}
}

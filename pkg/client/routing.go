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

package client

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"flymq/internal/netclient"
)

// SmartRouter maintains a live cluster-metadata view over
// internal/netclient so callers can discover a topic/partition's current
// leader directly, instead of connecting to an arbitrary bootstrap server
// and paying a "not leader" round trip first (see Client.tryFailoverToLeader
// for the blocking-client equivalent this complements).
type SmartRouter struct {
	nc *netclient.Client
}

// NewSmartRouter builds a SmartRouter from the same comma-separated
// bootstrap server syntax NewClusterClient accepts.
func NewSmartRouter(bootstrapServers string) (*SmartRouter, error) {
	servers := parseBootstrapServers(bootstrapServers)
	if len(servers) == 0 {
		return nil, fmt.Errorf("no bootstrap servers provided")
	}

	nodes := make([]netclient.Node, 0, len(servers))
	for i, s := range servers {
		host, port, err := splitHostPort(s)
		if err != nil {
			return nil, fmt.Errorf("invalid bootstrap server %q: %w", s, err)
		}
		nodes = append(nodes, netclient.Node{
			ID:   fmt.Sprintf("bootstrap-%d", i),
			Host: host,
			Port: port,
		})
	}

	return &SmartRouter{nc: netclient.New(nodes, netclient.Config{})}, nil
}

// Refresh drives the underlying netclient.Client's poll loop until a
// cluster metadata response arrives or timeout elapses.
func (r *SmartRouter) Refresh(timeout time.Duration) error {
	before := r.nc.Metadata().FetchedAt
	r.nc.RequestMetadataUpdate()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		now := time.Now()
		if _, err := r.nc.Poll(50*time.Millisecond, now); err != nil {
			return err
		}
		if r.nc.Metadata().FetchedAt.After(before) {
			return nil
		}
	}
	return fmt.Errorf("client: cluster metadata refresh timed out after %s", timeout)
}

// LeaderFor returns the "host:port" address currently believed to lead
// topic/partition, per the last successful Refresh.
func (r *SmartRouter) LeaderFor(topic string, partition int32) (string, bool) {
	node, ok := r.nc.Metadata().LeaderFor(topic, partition)
	if !ok {
		return "", false
	}
	return node.Addr(), true
}

// Close tears down every connection the router opened.
func (r *SmartRouter) Close() {
	r.nc.CloseAll()
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return host, port, nil
}

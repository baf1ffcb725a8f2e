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
	"net"
	"strconv"
)

// splitHostPort parses "host:port" permissively: a malformed address
// yields port 0 rather than an error, since the caller (metadata refresh)
// has no good recovery path other than leaving the node unreachable until
// the next refresh corrects it.
func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}

// Metadata returns the client's current cached cluster metadata snapshot.
func (c *Client) Metadata() *ClusterMetadata {
	return c.updater.(*defaultMetadataUpdater).metadata
}

// RequestMetadataUpdate forces the next Poll call to refresh cluster
// metadata regardless of the configured refresh interval.
func (c *Client) RequestMetadataUpdate() {
	c.updater.requestUpdate()
}

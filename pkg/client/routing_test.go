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
	"net"
	"testing"
	"time"

	"flymq/internal/protocol"
)

// fakeMetadataServer answers every OpClusterMetadata request with a fixed
// single-partition response leading at leaderID/leaderAddr.
func fakeMetadataServer(t *testing.T, leaderID, leaderAddr string) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msg, err := protocol.ReadMessage(conn)
			if err != nil {
				return
			}
			if msg.Header.Op != protocol.OpClusterMetadata {
				return
			}
			resp := &protocol.BinaryClusterMetadataResponse{
				ClusterID: "test-cluster",
				Topics: []protocol.TopicMetadata{
					{
						Topic: "orders",
						Partitions: []protocol.PartitionMetadata{
							{
								Partition:  0,
								LeaderID:   leaderID,
								LeaderAddr: leaderAddr,
								Epoch:      1,
								State:      "online",
								Replicas:   []string{leaderID},
								ISR:        []string{leaderID},
							},
						},
					},
				},
			}
			payload := protocol.EncodeBinaryClusterMetadataResponse(resp)
			if err := protocol.WriteMessage(conn, protocol.OpClusterMetadata, payload); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String(), func() { ln.Close() }
}

func TestSmartRouter_RefreshAndLeaderFor(t *testing.T) {
	addr, stop := fakeMetadataServer(t, "broker-1", "127.0.0.1:9999")
	defer stop()

	router, err := NewSmartRouter(addr)
	if err != nil {
		t.Fatalf("NewSmartRouter: %v", err)
	}
	defer router.Close()

	if err := router.Refresh(2 * time.Second); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	leaderAddr, ok := router.LeaderFor("orders", 0)
	if !ok {
		t.Fatal("expected a leader for orders/0")
	}
	if leaderAddr != "127.0.0.1:9999" {
		t.Errorf("got leader addr %q, want 127.0.0.1:9999", leaderAddr)
	}

	if _, ok := router.LeaderFor("orders", 1); ok {
		t.Error("expected no leader for unknown partition")
	}
}

func TestNewSmartRouter_RejectsEmptyBootstrap(t *testing.T) {
	if _, err := NewSmartRouter(""); err == nil {
		t.Error("expected error for empty bootstrap server list")
	}
}

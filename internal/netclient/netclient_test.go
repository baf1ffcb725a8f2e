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
	"strings"
	"testing"
	"time"

	"flymq/internal/protocol"
)

// echoServer accepts one connection and, for every request it reads,
// writes back a response with the same opcode and a payload that is the
// request payload reversed-concatenated with a marker — good enough to
// prove FIFO ordering across several in-flight requests.
func echoServer(t *testing.T, handler func(op protocol.OpCode, payload []byte) (protocol.OpCode, []byte)) (addr string, stop func()) {
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
			op, payload := handler(msg.Header.Op, msg.Payload)
			if err := protocol.WriteMessage(conn, op, payload); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String(), func() { ln.Close() }
}

// waitReady polls c.Ready until it reports true or timeout elapses. Dialing
// is asynchronous, so a single Ready call no longer converges synchronously
// the way it did when initiateConnect blocked the caller.
func waitReady(t *testing.T, c *Client, node Node) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Ready(node, time.Now()) {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func nodeFromTestAddr(t *testing.T, id, addr string) Node {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return Node{ID: id, Host: host, Port: port}
}

func TestReady_ConnectsLazily(t *testing.T) {
	addr, stop := echoServer(t, func(op protocol.OpCode, payload []byte) (protocol.OpCode, []byte) {
		return op, payload
	})
	defer stop()

	node := nodeFromTestAddr(t, "b1", addr)
	c := New([]Node{node}, Config{})
	now := time.Now()
	// Metadata that has never been fetched makes a refresh due, which keeps
	// IsReady false for every node; mark it fresh so only connection state
	// decides IsReady here.
	c.updater.(*defaultMetadataUpdater).lastRefresh = now

	if c.IsReady(node, now) {
		t.Fatal("IsReady should be false before any connection attempt")
	}
	c.Ready(node, now) // kicks off the async dial
	if !waitReady(t, c, node) {
		t.Fatal("Ready should eventually report true once connected")
	}
	if !c.IsReady(node, now) {
		t.Fatal("IsReady should be true once Connected")
	}
}

func TestSend_RequiresReady(t *testing.T) {
	node := Node{ID: "b1", Host: "127.0.0.1", Port: 1}
	c := New([]Node{node}, Config{})
	now := time.Now()

	err := c.Send(&Request{Node: node, Op: protocol.OpProduce}, now)
	if err != ErrIllegalState {
		t.Fatalf("expected ErrIllegalState, got %v", err)
	}
}

func TestSendAndPoll_FIFOMatchesResponsesToRequests(t *testing.T) {
	addr, stop := echoServer(t, func(op protocol.OpCode, payload []byte) (protocol.OpCode, []byte) {
		return op, payload
	})
	defer stop()

	node := nodeFromTestAddr(t, "b1", addr)
	c := New([]Node{node}, Config{})
	now := time.Now()

	if !waitReady(t, c, node) {
		t.Fatal("expected node to become ready")
	}

	var got []string
	for i := 0; i < 3; i++ {
		payload := []byte(strings.Repeat(string(rune('a'+i)), 1))
		req := &Request{Node: node, Op: protocol.OpProduce, Payload: payload, ExpectsResponse: true}
		if err := c.Send(req, now); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(got) < 3 && time.Now().Before(deadline) {
		responses, err := c.Poll(50*time.Millisecond, time.Now())
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		for _, r := range responses {
			if r.Err != nil {
				t.Fatalf("unexpected response error: %v", r.Err)
			}
			got = append(got, string(r.Payload))
		}
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 responses, got %d: %v", len(got), got)
	}
	for i, v := range got {
		want := strings.Repeat(string(rune('a'+i)), 1)
		if v != want {
			t.Errorf("response %d: want %q in FIFO order, got %q", i, want, v)
		}
	}
}

func TestPoll_ServerCloseProducesSyntheticDisconnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	node := nodeFromTestAddr(t, "b1", ln.Addr().String())
	c := New([]Node{node}, Config{})
	now := time.Now()

	if !waitReady(t, c, node) {
		t.Fatal("expected ready")
	}
	conn := <-accepted

	req := &Request{Node: node, Op: protocol.OpProduce, Payload: []byte("x"), ExpectsResponse: true}
	if err := c.Send(req, now); err != nil {
		t.Fatalf("send: %v", err)
	}
	conn.Close() // server drops the connection without responding

	deadline := time.Now().Add(2 * time.Second)
	var resp *Response
	for resp == nil && time.Now().Before(deadline) {
		responses, _ := c.Poll(50*time.Millisecond, time.Now())
		for _, r := range responses {
			resp = r
		}
	}

	if resp == nil {
		t.Fatal("expected a synthetic disconnect response")
	}
	if !resp.Disconnected {
		t.Errorf("expected Disconnected=true, got %+v", resp)
	}
	if resp.Request != req {
		t.Errorf("response not matched back to original request")
	}
}

func TestClose_FailsInFlightRequestsOnNextPoll(t *testing.T) {
	addr, stop := echoServer(t, func(op protocol.OpCode, payload []byte) (protocol.OpCode, []byte) {
		time.Sleep(time.Hour) // never actually responds within the test
		return op, payload
	})
	defer stop()

	node := nodeFromTestAddr(t, "b1", addr)
	c := New([]Node{node}, Config{})
	now := time.Now()

	if !waitReady(t, c, node) {
		t.Fatal("expected ready")
	}
	req := &Request{Node: node, Op: protocol.OpProduce, Payload: []byte("x"), ExpectsResponse: true}
	if err := c.Send(req, now); err != nil {
		t.Fatalf("send: %v", err)
	}

	c.Close(node)

	responses, err := c.Poll(10*time.Millisecond, time.Now())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(responses) != 1 || !responses[0].Disconnected {
		t.Fatalf("expected one disconnected response from Close, got %+v", responses)
	}
}

func TestRequestTimeout_ExpiresOldestFirst(t *testing.T) {
	addr, stop := echoServer(t, func(op protocol.OpCode, payload []byte) (protocol.OpCode, []byte) {
		time.Sleep(time.Hour)
		return op, payload
	})
	defer stop()

	node := nodeFromTestAddr(t, "b1", addr)
	cfg := Config{RequestTimeout: 10 * time.Millisecond}
	c := New([]Node{node}, cfg)
	now := time.Now()

	if !waitReady(t, c, node) {
		t.Fatal("expected ready")
	}
	req := &Request{Node: node, Op: protocol.OpProduce, Payload: []byte("x"), ExpectsResponse: true}
	if err := c.Send(req, now); err != nil {
		t.Fatalf("send: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var resp *Response
	for resp == nil && time.Now().Before(deadline) {
		responses, _ := c.Poll(20*time.Millisecond, time.Now())
		for _, r := range responses {
			resp = r
		}
	}

	if resp == nil {
		t.Fatal("expected a timeout response")
	}
	if !resp.TimedOut {
		t.Errorf("expected TimedOut=true, got %+v", resp)
	}
}

func TestLeastLoadedNode_PrefersFewerInFlight(t *testing.T) {
	addrA, stopA := echoServer(t, func(op protocol.OpCode, payload []byte) (protocol.OpCode, []byte) { return op, payload })
	defer stopA()
	addrB, stopB := echoServer(t, func(op protocol.OpCode, payload []byte) (protocol.OpCode, []byte) { return op, payload })
	defer stopB()

	nodeA := nodeFromTestAddr(t, "a", addrA)
	nodeB := nodeFromTestAddr(t, "b", addrB)
	c := New([]Node{nodeA, nodeB}, Config{})
	now := time.Now()

	if !waitReady(t, c, nodeA) {
		t.Fatal("expected node a to become ready")
	}
	if !waitReady(t, c, nodeB) {
		t.Fatal("expected node b to become ready")
	}

	for i := 0; i < 2; i++ {
		if err := c.Send(&Request{Node: nodeA, Op: protocol.OpProduce, Payload: []byte("x"), ExpectsResponse: true}, now); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	got, ok := c.LeastLoadedNode(now)
	if !ok {
		t.Fatal("expected a least-loaded node")
	}
	if got.ID != nodeB.ID {
		t.Errorf("expected node %q (fewer in-flight) to be least loaded, got %q", nodeB.ID, got.ID)
	}
}

func TestIsReady_FalseWhileMetadataRefreshDue(t *testing.T) {
	addr, stop := echoServer(t, func(op protocol.OpCode, payload []byte) (protocol.OpCode, []byte) { return op, payload })
	defer stop()

	node := nodeFromTestAddr(t, "b1", addr)
	c := New([]Node{node}, Config{})
	now := time.Now()

	if !waitReady(t, c, node) {
		t.Fatal("expected node to become ready")
	}
	c.updater.(*defaultMetadataUpdater).lastRefresh = now
	if !c.IsReady(node, now) {
		t.Fatal("expected IsReady true once Connected with fresh metadata and no refresh forced")
	}

	c.updater.(*defaultMetadataUpdater).forced = true
	if c.IsReady(node, now) {
		t.Fatal("expected IsReady false for every node while a metadata refresh is due")
	}
}

func TestSend_FireAndForgetRetiresImmediately(t *testing.T) {
	addr, stop := echoServer(t, func(op protocol.OpCode, payload []byte) (protocol.OpCode, []byte) { return op, payload })
	defer stop()

	node := nodeFromTestAddr(t, "b1", addr)
	c := New([]Node{node}, Config{})
	now := time.Now()

	if !waitReady(t, c, node) {
		t.Fatal("expected node to become ready")
	}

	req := &Request{Node: node, Op: protocol.OpProduce, Payload: []byte("no-reply-needed")}
	if err := c.Send(req, now); err != nil {
		t.Fatalf("send: %v", err)
	}

	responses, err := c.Poll(50*time.Millisecond, time.Now())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(responses) != 1 {
		t.Fatalf("expected exactly one synthetic response for a fire-and-forget send, got %d: %+v", len(responses), responses)
	}
	resp := responses[0]
	if resp.Request != req {
		t.Errorf("synthetic response not matched back to the original request")
	}
	if resp.Err != nil || resp.Disconnected || resp.TimedOut {
		t.Errorf("expected an immediate synthetic success response, got %+v", resp)
	}
}

func TestClusterMetadata_LeaderFor(t *testing.T) {
	m := newClusterMetadata()
	m.Nodes["b1"] = Node{ID: "b1", Host: "127.0.0.1", Port: 9092}
	m.leaders["orders"] = map[int32]string{0: "b1"}

	leader, ok := m.LeaderFor("orders", 0)
	if !ok || leader.ID != "b1" {
		t.Fatalf("expected leader b1 for orders/0, got %+v ok=%v", leader, ok)
	}
	if _, ok := m.LeaderFor("orders", 1); ok {
		t.Error("expected no leader for unknown partition")
	}
	if _, ok := m.LeaderFor("unknown-topic", 0); ok {
		t.Error("expected no leader for unknown topic")
	}
}

func TestSplitHostPort(t *testing.T) {
	host, port := splitHostPort("127.0.0.1:9092")
	if host != "127.0.0.1" || port != 9092 {
		t.Errorf("got host=%q port=%d", host, port)
	}
	host, port = splitHostPort("not-an-address")
	if port != 0 {
		t.Errorf("expected port 0 for malformed address, got %d", port)
	}
}

func TestWakeup_InterruptsBlockingPoll(t *testing.T) {
	c := New(nil, Config{})
	done := make(chan struct{})
	go func() {
		c.Poll(5*time.Second, time.Now())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	c.Wakeup()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Poll did not return promptly after Wakeup")
	}
}

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
BatchedStore provides high-performance batched writes with configurable durability.

PERFORMANCE OPTIMIZATION:
=========================
The original Store calls fsync() after every write, which blocks for ~3ms per message
(disk I/O latency). This limits throughput to ~300 msgs/sec.

BatchedStore batches multiple writes and defers fsync based on configurable policies:
- "all": fsync every write (original behavior, safest)
- "leader": flush the write buffer to the OS on an interval or batch size,
  without fsync (balanced)
- "none": no flush or fsync after a write; buffered data reaches the file
  when the buffer fills or is flushed by a read, and is fsynced on Close (fastest)

With "leader" mode (default), we can achieve 10-20x throughput improvement.
*/
package storage

import (
	"bufio"
	"encoding/binary"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// BatchedStore wraps Store with batched write support.
type BatchedStore struct {
	*Store
	config PerformanceConfig

	mu            sync.Mutex
	pendingWrites int32
	lastSync      time.Time
	syncTicker    *time.Ticker
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

// NewBatchedStore creates a new batched store with the given configuration.
func NewBatchedStore(file *os.File, config PerformanceConfig) (*BatchedStore, error) {
	store, err := NewStore(file)
	if err != nil {
		return nil, err
	}

	// Use larger write buffer for better large message performance
	// Default bufio.Writer is only 4KB, which is too small for large messages
	bufferSize := config.WriteBufferSize
	if bufferSize <= 0 {
		bufferSize = 256 * 1024 // Default 256KB for good large message performance
	}
	store.buf = bufio.NewWriterSize(file, bufferSize)

	bs := &BatchedStore{
		Store:    store,
		config:   config,
		lastSync: time.Now(),
		stopChan: make(chan struct{}),
	}

	// Start background sync goroutine for "leader" mode
	if config.Acks == "leader" && config.SyncIntervalMs > 0 {
		bs.syncTicker = time.NewTicker(time.Duration(config.SyncIntervalMs) * time.Millisecond)
		bs.wg.Add(1)
		go bs.syncLoop()
	}

	return bs, nil
}

// syncLoop runs in background and periodically syncs pending writes.
func (bs *BatchedStore) syncLoop() {
	defer bs.wg.Done()
	for {
		select {
		case <-bs.syncTicker.C:
			bs.flushIfNeeded()
		case <-bs.stopChan:
			return
		}
	}
}

// flushIfNeeded syncs to disk if there are pending writes.
func (bs *BatchedStore) flushIfNeeded() {
	if atomic.LoadInt32(&bs.pendingWrites) > 0 {
		bs.mu.Lock()
		bs.syncToDisk()
		bs.mu.Unlock()
	}
}

// syncToDisk performs the actual sync. Must be called with mu held.
// For "leader" mode, we only flush to OS buffer (like Kafka's acks=1).
// For "all" mode, we do a full fsync.
func (bs *BatchedStore) syncToDisk() {
	_ = bs.buf.Flush()
	// Only do fsync for "all" mode - "leader" mode just flushes to OS buffer
	// This matches Kafka's acks=1 behavior which doesn't wait for disk sync
	if bs.config.Acks == "all" {
		_ = bs.File.Sync()
	}
	atomic.StoreInt32(&bs.pendingWrites, 0)
	bs.lastSync = time.Now()
}

// Append writes data with batched sync based on durability mode.
func (bs *BatchedStore) Append(p []byte) (n uint64, pos uint64, err error) {
	bs.mu.Lock()

	pos = bs.size
	if err := binary.Write(bs.buf, binary.BigEndian, uint64(len(p))); err != nil {
		bs.mu.Unlock()
		return 0, 0, err
	}
	nn, err := bs.buf.Write(p)
	if err != nil {
		bs.mu.Unlock()
		return 0, 0, err
	}
	n = uint64(nn) + 8
	bs.size += n

	switch bs.config.Acks {
	case "all":
		// Synchronous flush and sync
		if err := bs.buf.Flush(); err != nil {
			bs.mu.Unlock()
			return 0, 0, err
		}
		if err := bs.File.Sync(); err != nil {
			bs.mu.Unlock()
			return 0, 0, err
		}
		bs.mu.Unlock()
	case "leader":
		// Increment pending count and check if we need to sync
		pending := atomic.AddInt32(&bs.pendingWrites, 1)
		bs.mu.Unlock()
		// Sync is handled by background goroutine or when batch size is reached
		if bs.config.SyncBatchSize > 0 && int(pending) >= bs.config.SyncBatchSize {
			bs.flushIfNeeded()
		}
	case "none":
		// No sync - data synced on close/rotation only
		bs.mu.Unlock()
	default:
		bs.mu.Unlock()
	}

	return n, pos, nil
}

// Close flushes pending writes and closes the store.
func (bs *BatchedStore) Close() error {
	if bs.syncTicker != nil {
		bs.syncTicker.Stop()
		close(bs.stopChan)
		bs.wg.Wait()
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()

	if err := bs.buf.Flush(); err != nil {
		return err
	}
	if err := bs.File.Sync(); err != nil {
		return err
	}

	return bs.Store.Close()
}

// Sync forces a sync to disk.
func (bs *BatchedStore) Sync() error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if err := bs.buf.Flush(); err != nil {
		return err
	}
	if err := bs.File.Sync(); err != nil {
		return err
	}
	atomic.StoreInt32(&bs.pendingWrites, 0)
	bs.lastSync = time.Now()
	return nil
}

// PendingWrites returns the number of writes pending sync.
func (bs *BatchedStore) PendingWrites() int {
	return int(atomic.LoadInt32(&bs.pendingWrites))
}

// Size returns the current store size (thread-safe).
func (bs *BatchedStore) Size() uint64 {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.size
}

// GetFileAndPosition returns the file and position info for zero-copy reads.
func (bs *BatchedStore) GetFileAndPosition(pos uint64) (*os.File, int64, int64, error) {
	bs.mu.Lock()
	// Flush any buffered writes first
	if err := bs.buf.Flush(); err != nil {
		bs.mu.Unlock()
		return nil, 0, 0, err
	}
	bs.mu.Unlock()

	// Read the length prefix
	size := make([]byte, 8)
	if _, err := bs.File.ReadAt(size, int64(pos)); err != nil {
		return nil, 0, 0, err
	}

	length := int64(binary.BigEndian.Uint64(size))
	dataOffset := int64(pos) + 8

	return bs.File, dataOffset, length, nil
}

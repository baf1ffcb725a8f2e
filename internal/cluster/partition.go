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
Partition Management for FlyMQ.

OVERVIEW:
=========
Topics are divided into partitions for parallelism and scalability.
Each partition has a leader and multiple replicas for fault tolerance.

PARTITION STATES:
=================
- ONLINE: Partition is serving requests
- OFFLINE: Partition is unavailable
- REASSIGNING: Partition is being moved to another node
- SYNCING: Replica is catching up with leader

LEADER ELECTION:
================
When a partition leader fails:
1. Controller detects failure via membership
2. Controller selects new leader from ISR (In-Sync Replicas)
3. New leader is announced to all nodes
4. Clients are redirected to new leader

PARTITION ASSIGNMENT:
=====================
Target layouts come from internal/placement (round-robin leaders with
shifted follower replicas; see distributor.go). It is not consistent
hashing: a change in the node list can move many partitions.
*/
package cluster

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"flymq/internal/logging"
)

// PartitionState represents the state of a partition.
type PartitionState int

const (
	PartitionOnline PartitionState = iota
	PartitionOffline
	PartitionReassigning
	PartitionSyncing
)

func (s PartitionState) String() string {
	switch s {
	case PartitionOnline:
		return "online"
	case PartitionOffline:
		return "offline"
	case PartitionReassigning:
		return "reassigning"
	case PartitionSyncing:
		return "syncing"
	default:
		return "unknown"
	}
}

// PartitionAssignment represents the assignment of a partition.
type PartitionAssignment struct {
	Topic        string            `json:"topic"`
	Partition    int               `json:"partition"`
	Leader       string            `json:"leader"`
	LeaderAddr   string            `json:"leader_addr"`   // Client-facing address of the leader
	Replicas     []string          `json:"replicas"`
	ReplicaAddrs map[string]string `json:"replica_addrs"` // Node ID -> client address
	ISR          []string          `json:"isr"`            // In-Sync Replicas
	State        PartitionState    `json:"state"`
	Epoch        uint64            `json:"epoch"`          // Bumped on every leader change, for fencing
	ZKVersion    uint64            `json:"zk_version"`     // Bumped alongside Epoch; see internal/election
}

// PartitionLeaderInfo is the routing-only projection of a PartitionAssignment
// handed to clients and to other brokers: just enough to find the leader.
type PartitionLeaderInfo struct {
	Topic       string `json:"topic"`
	Partition   int    `json:"partition"`
	LeaderID    string `json:"leader_id"`
	LeaderAddr  string `json:"leader_addr"`
	Epoch       uint64 `json:"epoch"`
	IsLocalNode bool   `json:"-"`
}

// ReassignmentPlan represents a plan to reassign partitions.
type ReassignmentPlan struct {
	Assignments []PartitionReassignment `json:"assignments"`
}

// PartitionReassignment represents a single partition reassignment.
type PartitionReassignment struct {
	Topic            string   `json:"topic"`
	Partition        int      `json:"partition"`
	OldReplicas      []string `json:"old_replicas"`
	NewReplicas      []string `json:"new_replicas"`
	AddingReplicas   []string `json:"adding_replicas"`
	RemovingReplicas []string `json:"removing_replicas"`
}

// PartitionManager manages partition assignments across the cluster.
type PartitionManager struct {
	mu          sync.RWMutex
	assignments map[string]map[int]*PartitionAssignment // topic -> partition -> assignment
	dataDir     string
	nodeID      string
	logger      *logging.Logger

	// Callbacks
	onLeaderChange func(topic string, partition int, newLeader string)
}

// NewPartitionManager creates a new partition manager.
func NewPartitionManager(nodeID, dataDir string) (*PartitionManager, error) {
	pm := &PartitionManager{
		assignments: make(map[string]map[int]*PartitionAssignment),
		dataDir:     dataDir,
		nodeID:      nodeID,
		logger:      logging.NewLogger("partition"),
	}

	if err := pm.loadAssignments(); err != nil {
		pm.logger.Warn("Failed to load partition assignments", "error", err)
	}

	return pm, nil
}

// SetLeaderChangeCallback sets the callback for leader changes.
func (pm *PartitionManager) SetLeaderChangeCallback(cb func(topic string, partition int, newLeader string)) {
	pm.onLeaderChange = cb
}

// GetAssignment returns the assignment for a partition.
func (pm *PartitionManager) GetAssignment(topic string, partition int) (*PartitionAssignment, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if topicAssignments, ok := pm.assignments[topic]; ok {
		if assignment, ok := topicAssignments[partition]; ok {
			return assignment, true
		}
	}
	return nil, false
}

// GetTopicAssignments returns all assignments for a topic.
func (pm *PartitionManager) GetTopicAssignments(topic string) []*PartitionAssignment {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	var assignments []*PartitionAssignment
	if topicAssignments, ok := pm.assignments[topic]; ok {
		for _, assignment := range topicAssignments {
			assignments = append(assignments, assignment)
		}
	}
	return assignments
}

// GetLeaderPartitions returns partitions where this node is the leader.
func (pm *PartitionManager) GetLeaderPartitions() []*PartitionAssignment {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	var assignments []*PartitionAssignment
	for _, topicAssignments := range pm.assignments {
		for _, assignment := range topicAssignments {
			if assignment.Leader == pm.nodeID {
				assignments = append(assignments, assignment)
			}
		}
	}
	return assignments
}

// GetReplicaPartitions returns partitions where this node is a replica.
func (pm *PartitionManager) GetReplicaPartitions() []*PartitionAssignment {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	var assignments []*PartitionAssignment
	for _, topicAssignments := range pm.assignments {
		for _, assignment := range topicAssignments {
			for _, replica := range assignment.Replicas {
				if replica == pm.nodeID {
					assignments = append(assignments, assignment)
					break
				}
			}
		}
	}
	return assignments
}

// CreateAssignment creates a new partition assignment.
func (pm *PartitionManager) CreateAssignment(topic string, partition int, leader string, replicas []string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, ok := pm.assignments[topic]; !ok {
		pm.assignments[topic] = make(map[int]*PartitionAssignment)
	}

	assignment := &PartitionAssignment{
		Topic:     topic,
		Partition: partition,
		Leader:    leader,
		Replicas:  replicas,
		ISR:       replicas, // Initially all replicas are in-sync
		State:     PartitionOnline,
	}

	pm.assignments[topic][partition] = assignment
	pm.logger.Info("Created partition assignment", "topic", topic, "partition", partition, "leader", leader)

	return pm.saveAssignments()
}

// CreateAssignmentWithAddr creates a new partition assignment carrying the
// client-facing addresses needed for request routing.
func (pm *PartitionManager) CreateAssignmentWithAddr(topic string, partition int, leader, leaderAddr string, replicas []string, replicaAddrs map[string]string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, ok := pm.assignments[topic]; !ok {
		pm.assignments[topic] = make(map[int]*PartitionAssignment)
	}

	assignment := &PartitionAssignment{
		Topic:        topic,
		Partition:    partition,
		Leader:       leader,
		LeaderAddr:   leaderAddr,
		Replicas:     replicas,
		ReplicaAddrs: replicaAddrs,
		ISR:          replicas,
		State:        PartitionOnline,
		Epoch:        1,
		ZKVersion:    1,
	}

	pm.assignments[topic][partition] = assignment
	pm.logger.Info("Created partition assignment", "topic", topic, "partition", partition, "leader", leader, "leader_addr", leaderAddr)

	return pm.saveAssignments()
}

// UpdateLeaderWithAddr updates the leader and its client-facing address for a
// partition, bumping Epoch to fence stale leaders.
func (pm *PartitionManager) UpdateLeaderWithAddr(topic string, partition int, newLeader, newLeaderAddr string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if topicAssignments, ok := pm.assignments[topic]; ok {
		if assignment, ok := topicAssignments[partition]; ok {
			oldLeader := assignment.Leader
			assignment.Leader = newLeader
			assignment.LeaderAddr = newLeaderAddr
			assignment.Epoch++
			assignment.ZKVersion++
			pm.logger.Info("Updated partition leader", "topic", topic, "partition", partition,
				"old_leader", oldLeader, "new_leader", newLeader, "epoch", assignment.Epoch)

			if pm.onLeaderChange != nil {
				go pm.onLeaderChange(topic, partition, newLeader)
			}

			return pm.saveAssignments()
		}
	}

	return fmt.Errorf("partition not found: %s-%d", topic, partition)
}

// ApplyElection commits the result of an election.Select call: new leader,
// leader address, ISR, epoch, and zk_version, all in one step so the
// assignment is never observed half-updated.
func (pm *PartitionManager) ApplyElection(topic string, partition int, newLeader, newLeaderAddr string, newISR []string, epoch, zkVersion uint64) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	topicAssignments, ok := pm.assignments[topic]
	if !ok {
		return fmt.Errorf("partition not found: %s-%d", topic, partition)
	}
	assignment, ok := topicAssignments[partition]
	if !ok {
		return fmt.Errorf("partition not found: %s-%d", topic, partition)
	}

	assignment.Leader = newLeader
	assignment.LeaderAddr = newLeaderAddr
	assignment.ISR = newISR
	assignment.Epoch = epoch
	assignment.ZKVersion = zkVersion
	assignment.State = PartitionOnline

	if pm.onLeaderChange != nil {
		go pm.onLeaderChange(topic, partition, newLeader)
	}
	return pm.saveAssignments()
}

// GetPartitionLeader returns routing-only leader info for a partition.
func (pm *PartitionManager) GetPartitionLeader(topic string, partition int) (*PartitionLeaderInfo, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	topicAssignments, ok := pm.assignments[topic]
	if !ok {
		return nil, false
	}
	assignment, ok := topicAssignments[partition]
	if !ok {
		return nil, false
	}
	return &PartitionLeaderInfo{
		Topic:       assignment.Topic,
		Partition:   assignment.Partition,
		LeaderID:    assignment.Leader,
		LeaderAddr:  assignment.LeaderAddr,
		Epoch:       assignment.Epoch,
		IsLocalNode: assignment.Leader == pm.nodeID,
	}, true
}

// IsPartitionLeader reports whether this node leads the given partition.
func (pm *PartitionManager) IsPartitionLeader(topic string, partition int) bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	topicAssignments, ok := pm.assignments[topic]
	if !ok {
		return false
	}
	assignment, ok := topicAssignments[partition]
	return ok && assignment.Leader == pm.nodeID
}

// GetAllPartitionLeaders returns routing-only leader info for every
// partition of a topic, ordered by partition index.
func (pm *PartitionManager) GetAllPartitionLeaders(topic string) []*PartitionLeaderInfo {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	topicAssignments, ok := pm.assignments[topic]
	if !ok {
		return nil
	}
	result := make([]*PartitionLeaderInfo, 0, len(topicAssignments))
	for _, assignment := range topicAssignments {
		result = append(result, &PartitionLeaderInfo{
			Topic:       assignment.Topic,
			Partition:   assignment.Partition,
			LeaderID:    assignment.Leader,
			LeaderAddr:  assignment.LeaderAddr,
			Epoch:       assignment.Epoch,
			IsLocalNode: assignment.Leader == pm.nodeID,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Partition < result[j].Partition })
	return result
}

// GetClusterPartitionMetadata returns routing-only leader info for every
// partition of every topic, keyed by topic name.
func (pm *PartitionManager) GetClusterPartitionMetadata() map[string][]*PartitionLeaderInfo {
	pm.mu.RLock()
	topics := make([]string, 0, len(pm.assignments))
	for topic := range pm.assignments {
		topics = append(topics, topic)
	}
	pm.mu.RUnlock()

	result := make(map[string][]*PartitionLeaderInfo, len(topics))
	for _, topic := range topics {
		result[topic] = pm.GetAllPartitionLeaders(topic)
	}
	return result
}

// ListTopics returns the names of every topic with at least one assignment.
func (pm *PartitionManager) ListTopics() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	topics := make([]string, 0, len(pm.assignments))
	for topic := range pm.assignments {
		topics = append(topics, topic)
	}
	return topics
}

// UpdateLeader updates the leader for a partition.
func (pm *PartitionManager) UpdateLeader(topic string, partition int, newLeader string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if topicAssignments, ok := pm.assignments[topic]; ok {
		if assignment, ok := topicAssignments[partition]; ok {
			oldLeader := assignment.Leader
			assignment.Leader = newLeader
			assignment.Epoch++
			assignment.ZKVersion++
			pm.logger.Info("Updated partition leader", "topic", topic, "partition", partition, "old_leader", oldLeader, "new_leader", newLeader)

			if pm.onLeaderChange != nil {
				go pm.onLeaderChange(topic, partition, newLeader)
			}

			return pm.saveAssignments()
		}
	}

	return fmt.Errorf("partition not found: %s-%d", topic, partition)
}

// UpdateISR updates the in-sync replicas for a partition.
func (pm *PartitionManager) UpdateISR(topic string, partition int, isr []string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if topicAssignments, ok := pm.assignments[topic]; ok {
		if assignment, ok := topicAssignments[partition]; ok {
			assignment.ISR = isr
			return pm.saveAssignments()
		}
	}

	return fmt.Errorf("partition not found: %s-%d", topic, partition)
}

// Reassign initiates a partition reassignment.
func (pm *PartitionManager) Reassign(plan *ReassignmentPlan) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, reassignment := range plan.Assignments {
		if topicAssignments, ok := pm.assignments[reassignment.Topic]; ok {
			if assignment, ok := topicAssignments[reassignment.Partition]; ok {
				assignment.State = PartitionReassigning
				assignment.Replicas = reassignment.NewReplicas

				// If leader is being removed, elect new leader from new replicas
				leaderRemoved := true
				for _, replica := range reassignment.NewReplicas {
					if replica == assignment.Leader {
						leaderRemoved = false
						break
					}
				}

				if leaderRemoved && len(reassignment.NewReplicas) > 0 {
					assignment.Leader = reassignment.NewReplicas[0]
					assignment.Epoch++
					assignment.ZKVersion++
				}

				pm.logger.Info("Partition reassignment started",
					"topic", reassignment.Topic,
					"partition", reassignment.Partition,
					"new_replicas", reassignment.NewReplicas)
			}
		}
	}

	return pm.saveAssignments()
}

// CompleteReassignment marks a reassignment as complete.
func (pm *PartitionManager) CompleteReassignment(topic string, partition int) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if topicAssignments, ok := pm.assignments[topic]; ok {
		if assignment, ok := topicAssignments[partition]; ok {
			assignment.State = PartitionOnline
			assignment.ISR = assignment.Replicas
			pm.logger.Info("Partition reassignment completed", "topic", topic, "partition", partition)
			return pm.saveAssignments()
		}
	}

	return fmt.Errorf("partition not found: %s-%d", topic, partition)
}

// ElectLeader elects a new leader for a partition from the ISR.
func (pm *PartitionManager) ElectLeader(topic string, partition int) (string, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if topicAssignments, ok := pm.assignments[topic]; ok {
		if assignment, ok := topicAssignments[partition]; ok {
			if len(assignment.ISR) == 0 {
				return "", fmt.Errorf("no in-sync replicas available for %s-%d", topic, partition)
			}

			// Prefer first ISR member as new leader
			newLeader := assignment.ISR[0]
			assignment.Leader = newLeader
			assignment.Epoch++
			assignment.ZKVersion++
			pm.logger.Info("Elected new leader", "topic", topic, "partition", partition, "leader", newLeader)

			if pm.onLeaderChange != nil {
				go pm.onLeaderChange(topic, partition, newLeader)
			}

			return newLeader, pm.saveAssignments()
		}
	}

	return "", fmt.Errorf("partition not found: %s-%d", topic, partition)
}

func (pm *PartitionManager) loadAssignments() error {
	assignmentFile := filepath.Join(pm.dataDir, "partition_assignments.json")
	data, err := os.ReadFile(assignmentFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var assignments []*PartitionAssignment
	if err := json.Unmarshal(data, &assignments); err != nil {
		return err
	}

	for _, assignment := range assignments {
		if _, ok := pm.assignments[assignment.Topic]; !ok {
			pm.assignments[assignment.Topic] = make(map[int]*PartitionAssignment)
		}
		pm.assignments[assignment.Topic][assignment.Partition] = assignment
	}

	return nil
}

func (pm *PartitionManager) saveAssignments() error {
	if err := os.MkdirAll(pm.dataDir, 0755); err != nil {
		return err
	}

	var assignments []*PartitionAssignment
	for _, topicAssignments := range pm.assignments {
		for _, assignment := range topicAssignments {
			assignments = append(assignments, assignment)
		}
	}

	data, err := json.MarshalIndent(assignments, "", "  ")
	if err != nil {
		return err
	}

	assignmentFile := filepath.Join(pm.dataDir, "partition_assignments.json")
	return os.WriteFile(assignmentFile, data, 0644)
}

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
Partition distribution for FlyMQ.

PartitionDistributor computes target partition-to-node layouts with
internal/placement and compares them against a PartitionManager's current
state. It never mutates assignments itself: callers (Cluster) turn its
DistributionPlan into Raft proposals.
*/
package cluster

import "flymq/internal/placement"

// PartitionPlacement is one partition's target leader and replica set.
type PartitionPlacement struct {
	Topic     string
	Partition int
	Leader    string
	Replicas  []string
}

// DistributionPlan is an ordered set of target partition placements.
type DistributionPlan struct {
	Assignments []PartitionPlacement
}

// PartitionDistributor computes and evaluates partition distribution across
// cluster nodes.
type PartitionDistributor struct {
	pm *PartitionManager
}

// NewPartitionDistributor builds a distributor backed by pm.
func NewPartitionDistributor(pm *PartitionManager) *PartitionDistributor {
	return &PartitionDistributor{pm: pm}
}

// ComputeDistribution computes a fresh, deterministic target layout for a
// topic with numPartitions partitions over nodes, using fixedStartIndex=0 so
// repeated calls with the same nodes produce the same layout (required for
// AddPartitions-style partition-count growth to stay consistent).
func (d *PartitionDistributor) ComputeDistribution(topic string, numPartitions int, nodes []string, replicationFactor int) *DistributionPlan {
	if len(nodes) == 0 || numPartitions <= 0 {
		return &DistributionPlan{}
	}
	rf := replicationFactor
	if rf > len(nodes) {
		rf = len(nodes)
	}
	if rf <= 0 {
		rf = 1
	}

	brokers := make([]placement.Broker, len(nodes))
	for i, n := range nodes {
		brokers[i] = placement.Broker{ID: n}
	}

	assignment, err := placement.Assign(brokers, numPartitions, rf, 0, 0)
	if err != nil {
		return &DistributionPlan{}
	}

	plan := &DistributionPlan{Assignments: make([]PartitionPlacement, 0, numPartitions)}
	for p := 0; p < numPartitions; p++ {
		replicas := assignment[p]
		plan.Assignments = append(plan.Assignments, PartitionPlacement{
			Topic:     topic,
			Partition: p,
			Leader:    replicas[0],
			Replicas:  replicas,
		})
	}
	return plan
}

// ComputeRebalance compares every topic's current assignment against the
// ideal layout over nodes and returns only the placements whose leader
// would change.
func (d *PartitionDistributor) ComputeRebalance(nodes []string, replicationFactor int) *DistributionPlan {
	plan := &DistributionPlan{}

	for _, topic := range d.pm.ListTopics() {
		current := d.pm.GetTopicAssignments(topic)
		if len(current) == 0 {
			continue
		}

		ideal := d.ComputeDistribution(topic, len(current), nodes, replicationFactor)
		idealByPartition := make(map[int]PartitionPlacement, len(ideal.Assignments))
		for _, a := range ideal.Assignments {
			idealByPartition[a.Partition] = a
		}

		for _, cur := range current {
			want, ok := idealByPartition[cur.Partition]
			if !ok {
				continue
			}
			if want.Leader != cur.Leader {
				plan.Assignments = append(plan.Assignments, want)
			}
		}
	}
	return plan
}

// GetLeaderDistribution returns, for every node currently leading at least
// one partition, the number of partitions it leads across all topics.
func (d *PartitionDistributor) GetLeaderDistribution() map[string]int {
	d.pm.mu.RLock()
	defer d.pm.mu.RUnlock()

	counts := make(map[string]int)
	for _, topicAssignments := range d.pm.assignments {
		for _, assignment := range topicAssignments {
			if assignment.Leader != "" {
				counts[assignment.Leader]++
			}
		}
	}
	return counts
}

// IsBalanced reports whether partition leadership is spread evenly (no more
// than one partition of slack) across nodes.
func (d *PartitionDistributor) IsBalanced(nodes []string) bool {
	if len(nodes) == 0 {
		return true
	}
	counts := d.GetLeaderDistribution()

	min, max := -1, -1
	for _, n := range nodes {
		c := counts[n]
		if min == -1 || c < min {
			min = c
		}
		if max == -1 || c > max {
			max = c
		}
	}
	return max-min <= 1
}

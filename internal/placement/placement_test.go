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

package placement

import (
	"reflect"
	"testing"
)

func brokersNoRack(ids ...string) []Broker {
	out := make([]Broker, len(ids))
	for i, id := range ids {
		out[i] = Broker{ID: id}
	}
	return out
}

func TestAssignRackUnaware_ConcreteScenario(t *testing.T) {
	brokers := brokersNoRack("0", "1", "2", "3", "4")
	got, err := Assign(brokers, 10, 3, 0, 0)
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	// Derived from the additive shift formula in §4.A (the formula Kafka's
	// AdminUtils.assignReplicasToBrokers itself implements): shift
	// increments only when a partition index crosses a multiple of N.
	wantFirst := []string{"0", "1", "2", "3", "4", "0", "1", "2", "3", "4"}
	wantSecond := []string{"1", "2", "3", "4", "0", "2", "3", "4", "0", "1"}

	for p := 0; p < 10; p++ {
		replicas, ok := got[p]
		if !ok {
			t.Fatalf("missing partition %d", p)
		}
		if len(replicas) != 3 {
			t.Fatalf("partition %d: got %d replicas, want 3", p, len(replicas))
		}
		if replicas[0] != wantFirst[p] {
			t.Errorf("partition %d first replica = %s, want %s", p, replicas[0], wantFirst[p])
		}
		if replicas[1] != wantSecond[p] {
			t.Errorf("partition %d second replica = %s, want %s", p, replicas[1], wantSecond[p])
		}
	}
}

func TestAssignRackUnaware_Determinism(t *testing.T) {
	brokers := brokersNoRack("0", "1", "2", "3", "4", "5")
	a, err := Assign(brokers, 12, 3, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Assign(brokers, 12, 3, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("expected bitwise-identical output across runs with fixed start/shift")
	}
}

func TestAssignRackUnaware_NoDuplicateReplicasAndCorrectCount(t *testing.T) {
	brokers := brokersNoRack("0", "1", "2", "3", "4", "5", "6")
	got, err := Assign(brokers, 20, 4, -1, -1)
	if err != nil {
		t.Fatal(err)
	}
	for p, replicas := range got {
		if len(replicas) != 4 {
			t.Fatalf("partition %d: got %d replicas, want 4", p, len(replicas))
		}
		seen := make(map[string]bool)
		for _, r := range replicas {
			if seen[r] {
				t.Fatalf("partition %d: duplicate replica %s", p, r)
			}
			seen[r] = true
		}
	}
}

func TestAssign_Errors(t *testing.T) {
	brokers := brokersNoRack("0", "1", "2")
	if _, err := Assign(brokers, 0, 1, -1, -1); err != ErrInvalidPartitionCount {
		t.Errorf("n_partitions<=0: got %v", err)
	}
	if _, err := Assign(brokers, 3, 0, -1, -1); err != ErrInvalidReplicationFactor {
		t.Errorf("rf<=0: got %v", err)
	}
	if _, err := Assign(brokers, 3, 5, -1, -1); err != ErrReplicationFactorTooLarge {
		t.Errorf("rf>len(brokers): got %v", err)
	}
}

func TestAssignWithMode_MixedRackEnforced(t *testing.T) {
	brokers := []Broker{{ID: "0", Rack: "r1"}, {ID: "1"}, {ID: "2", Rack: "r2"}}
	if _, err := AssignWithMode(brokers, 3, 2, 0, 0, RackEnforced); err != ErrMixedRackInfo {
		t.Errorf("expected ErrMixedRackInfo, got %v", err)
	}
}

func TestAssignWithMode_MixedRackSafeDowngrades(t *testing.T) {
	brokers := []Broker{{ID: "0", Rack: "r1"}, {ID: "1"}, {ID: "2", Rack: "r2"}}
	got, err := AssignWithMode(brokers, 3, 2, 0, 0, RackSafe)
	if err != nil {
		t.Fatalf("expected downgrade to succeed, got %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d partitions, want 3", len(got))
	}
}

func TestAssignRackAware_ConcreteScenario(t *testing.T) {
	brokers := []Broker{
		{ID: "0", Rack: "r1"},
		{ID: "1", Rack: "r3"},
		{ID: "2", Rack: "r3"},
		{ID: "3", Rack: "r2"},
		{ID: "4", Rack: "r2"},
		{ID: "5", Rack: "r1"},
	}
	got, err := AssignWithMode(brokers, 7, 3, 0, 0, RackEnforced)
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	want := map[int][]string{
		0: {"0", "3", "1"},
		1: {"3", "1", "5"},
		2: {"1", "5", "4"},
		3: {"5", "4", "2"},
		4: {"4", "2", "0"},
		5: {"2", "0", "3"},
		6: {"0", "4", "2"},
	}
	for p, replicas := range want {
		if !reflect.DeepEqual(got[p], replicas) {
			t.Errorf("partition %d = %v, want %v", p, got[p], replicas)
		}
	}
}

func TestAssignRackAware_EveryRackRepresentedWhenRFGENumRacks(t *testing.T) {
	brokers := []Broker{
		{ID: "0", Rack: "r1"}, {ID: "1", Rack: "r1"},
		{ID: "2", Rack: "r2"}, {ID: "3", Rack: "r2"},
		{ID: "4", Rack: "r3"}, {ID: "5", Rack: "r3"},
	}
	rackOf := map[string]string{"0": "r1", "1": "r1", "2": "r2", "3": "r2", "4": "r3", "5": "r3"}

	got, err := AssignWithMode(brokers, 9, 3, -1, -1, RackEnforced)
	if err != nil {
		t.Fatal(err)
	}
	for p, replicas := range got {
		racks := make(map[string]bool)
		for _, r := range replicas {
			racks[rackOf[r]] = true
		}
		if len(racks) != 3 {
			t.Errorf("partition %d: racks used = %v, want all 3 racks represented", p, racks)
		}
	}
}

func TestAssignRackAware_NoSharedRackWhenRFLENumRacks(t *testing.T) {
	brokers := []Broker{
		{ID: "0", Rack: "r1"}, {ID: "1", Rack: "r1"},
		{ID: "2", Rack: "r2"}, {ID: "3", Rack: "r2"},
		{ID: "4", Rack: "r3"}, {ID: "5", Rack: "r3"},
	}
	rackOf := map[string]string{"0": "r1", "1": "r1", "2": "r2", "3": "r2", "4": "r3", "5": "r3"}

	got, err := AssignWithMode(brokers, 6, 2, -1, -1, RackEnforced)
	if err != nil {
		t.Fatal(err)
	}
	for p, replicas := range got {
		seen := make(map[string]bool)
		for _, r := range replicas {
			rack := rackOf[r]
			if seen[rack] {
				t.Errorf("partition %d: two replicas share rack %s", p, rack)
			}
			seen[rack] = true
		}
	}
}

func TestAddPartitions_PreservesReplicationFactorAndNoDuplicates(t *testing.T) {
	brokers := brokersNoRack("0", "1", "2", "3", "4")
	existing, err := Assign(brokers, 5, 3, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	extended, err := AddPartitions(brokers, existing, 5)
	if err != nil {
		t.Fatalf("AddPartitions failed: %v", err)
	}
	if len(extended) != 10 {
		t.Fatalf("got %d partitions, want 10", len(extended))
	}
	for p := 5; p < 10; p++ {
		replicas, ok := extended[p]
		if !ok {
			t.Fatalf("missing new partition %d", p)
		}
		if len(replicas) != 3 {
			t.Errorf("partition %d: got %d replicas, want 3", p, len(replicas))
		}
		seen := make(map[string]bool)
		for _, r := range replicas {
			if seen[r] {
				t.Errorf("partition %d: duplicate replica %s", p, r)
			}
			seen[r] = true
		}
	}
	for p := 0; p < 5; p++ {
		if !reflect.DeepEqual(extended[p], existing[p]) {
			t.Errorf("partition %d changed after AddPartitions: got %v, want %v", p, extended[p], existing[p])
		}
	}
}

func TestBalancedDistributionAcrossBrokers(t *testing.T) {
	brokers := brokersNoRack("0", "1", "2", "3")
	n := 40
	rf := 2
	got, err := Assign(brokers, n, rf, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	leaderCount := make(map[string]int)
	replicaCount := make(map[string]int)
	for _, replicas := range got {
		leaderCount[replicas[0]]++
		for _, r := range replicas {
			replicaCount[r]++
		}
	}

	wantLeader := n / len(brokers)
	for _, b := range brokers {
		if diff := leaderCount[b.ID] - wantLeader; diff < -1 || diff > 1 {
			t.Errorf("broker %s leader count = %d, want ~%d (+/-1)", b.ID, leaderCount[b.ID], wantLeader)
		}
	}
	wantReplica := n * rf / len(brokers)
	for _, b := range brokers {
		if diff := replicaCount[b.ID] - wantReplica; diff < -1 || diff > 1 {
			t.Errorf("broker %s replica count = %d, want ~%d (+/-1)", b.ID, replicaCount[b.ID], wantReplica)
		}
	}
}

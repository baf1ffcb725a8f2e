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

package election

import (
	"errors"
	"reflect"
	"testing"
)

func setOf(xs ...string) map[string]bool { return toSet(xs) }

func TestOffline_ElectsFirstARMemberInLiveISR(t *testing.T) {
	ctx := Context{
		AssignedReplicas: []string{"b1", "b2", "b3"},
		Current:          LeaderAndIsr{Leader: "b1", LeaderEpoch: 5, ISR: []string{"b1", "b2", "b3"}, ZKVersion: 5},
		Cluster:          ClusterState{LiveBrokers: setOf("b2", "b3")},
	}
	got, notify, err := Select(Offline, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Leader != "b2" {
		t.Errorf("leader = %s, want b2 (first AR member in live ISR)", got.Leader)
	}
	if !reflect.DeepEqual(got.ISR, []string{"b2", "b3"}) {
		t.Errorf("isr = %v, want [b2 b3]", got.ISR)
	}
	if got.LeaderEpoch != 6 || got.ZKVersion != 6 {
		t.Errorf("epoch/version not bumped: %+v", got)
	}
	if !reflect.DeepEqual(notify, []string{"b2", "b3"}) {
		t.Errorf("notify = %v, want live AR [b2 b3]", notify)
	}
}

func TestOffline_UncleanElectionWhenEnabled(t *testing.T) {
	ctx := Context{
		AssignedReplicas: []string{"b1", "b2", "b3"},
		Current:          LeaderAndIsr{Leader: "b1", LeaderEpoch: 1, ISR: []string{"b1"}, ZKVersion: 1},
		Cluster:          ClusterState{LiveBrokers: setOf("b2"), UncleanElectionEnabled: true},
	}
	got, notify, err := Select(Offline, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Leader != "b2" {
		t.Errorf("leader = %s, want b2 (head of live AR)", got.Leader)
	}
	if !reflect.DeepEqual(got.ISR, []string{"b2"}) {
		t.Errorf("isr = %v, want [b2]", got.ISR)
	}
	if !reflect.DeepEqual(notify, []string{"b2"}) {
		t.Errorf("notify = %v, want [b2]", notify)
	}
}

func TestOffline_FailsWhenUncleanDisabledAndISRDead(t *testing.T) {
	ctx := Context{
		AssignedReplicas: []string{"b1", "b2"},
		Current:          LeaderAndIsr{Leader: "b1", ISR: []string{"b1"}},
		Cluster:          ClusterState{LiveBrokers: setOf("b2"), UncleanElectionEnabled: false},
	}
	_, _, err := Select(Offline, ctx)
	if !errors.Is(err, ErrNoReplicaOnline) {
		t.Errorf("got %v, want ErrNoReplicaOnline", err)
	}
}

func TestOffline_FailsWhenNoARAtAll(t *testing.T) {
	ctx := Context{Cluster: ClusterState{UncleanElectionEnabled: true}}
	_, _, err := Select(Offline, ctx)
	if !errors.Is(err, ErrNoReplicaOnline) {
		t.Errorf("got %v, want ErrNoReplicaOnline", err)
	}
}

func TestReassigned_PicksFirstTargetAliveAndInISR(t *testing.T) {
	ctx := Context{
		Current:        LeaderAndIsr{Leader: "b1", LeaderEpoch: 2, ISR: []string{"b1", "b2", "b3"}, ZKVersion: 2},
		ReassignTarget: []string{"b3", "b2"},
		Cluster:        ClusterState{LiveBrokers: setOf("b1", "b2", "b3")},
	}
	got, notify, err := Select(Reassigned, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Leader != "b3" {
		t.Errorf("leader = %s, want b3 (first in target order)", got.Leader)
	}
	if !reflect.DeepEqual(got.ISR, ctx.Current.ISR) {
		t.Errorf("isr should be unchanged: got %v", got.ISR)
	}
	if !reflect.DeepEqual(notify, ctx.ReassignTarget) {
		t.Errorf("notify = %v, want target set", notify)
	}
}

func TestReassigned_EmptyTarget(t *testing.T) {
	ctx := Context{Current: LeaderAndIsr{ISR: []string{"b1"}}}
	_, _, err := Select(Reassigned, ctx)
	if !errors.Is(err, ErrNoReplicaOnline) {
		t.Errorf("got %v, want ErrNoReplicaOnline", err)
	}
}

func TestReassigned_NoneInISR(t *testing.T) {
	ctx := Context{
		Current:        LeaderAndIsr{ISR: []string{"b1"}},
		ReassignTarget: []string{"b2", "b3"},
		Cluster:        ClusterState{LiveBrokers: setOf("b2", "b3")},
	}
	_, _, err := Select(Reassigned, ctx)
	if !errors.Is(err, ErrNoReplicaOnline) {
		t.Errorf("got %v, want ErrNoReplicaOnline", err)
	}
}

func TestPreferredReplica_ElectsARHead(t *testing.T) {
	ctx := Context{
		AssignedReplicas: []string{"b2", "b1", "b3"},
		Current:          LeaderAndIsr{Leader: "b1", LeaderEpoch: 3, ISR: []string{"b1", "b2", "b3"}, ZKVersion: 3},
		Cluster:          ClusterState{LiveBrokers: setOf("b1", "b2", "b3")},
	}
	got, _, err := Select(PreferredReplica, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Leader != "b2" {
		t.Errorf("leader = %s, want b2 (AR[0])", got.Leader)
	}
	if !reflect.DeepEqual(got.ISR, ctx.Current.ISR) {
		t.Errorf("isr should be unchanged")
	}
}

func TestPreferredReplica_NotNeededWhenAlreadyLeader(t *testing.T) {
	ctx := Context{
		AssignedReplicas: []string{"b1", "b2"},
		Current:          LeaderAndIsr{Leader: "b1", LeaderEpoch: 9, ISR: []string{"b1", "b2"}, ZKVersion: 9},
		Cluster:          ClusterState{LiveBrokers: setOf("b1", "b2")},
	}
	before := ctx.Current
	_, _, err := Select(PreferredReplica, ctx)
	if !errors.Is(err, ErrElectionNotNeeded) {
		t.Errorf("got %v, want ErrElectionNotNeeded", err)
	}
	if !reflect.DeepEqual(ctx.Current, before) {
		t.Error("Select must not mutate Current on failure")
	}
}

func TestPreferredReplica_StateChangeWhenPreferredNotInISR(t *testing.T) {
	ctx := Context{
		AssignedReplicas: []string{"b1", "b2"},
		Current:          LeaderAndIsr{Leader: "b2", ISR: []string{"b2"}},
		Cluster:          ClusterState{LiveBrokers: setOf("b1", "b2")},
	}
	_, _, err := Select(PreferredReplica, ctx)
	if !errors.Is(err, ErrStateChangeFailed) {
		t.Errorf("got %v, want ErrStateChangeFailed", err)
	}
}

func TestControlledShutdown_MovesLeaderOffShuttingDownNode(t *testing.T) {
	ctx := Context{
		AssignedReplicas: []string{"b1", "b2", "b3"},
		Current:          LeaderAndIsr{Leader: "b1", LeaderEpoch: 1, ISR: []string{"b1", "b2", "b3"}, ZKVersion: 1},
		Cluster: ClusterState{
			LiveBrokers:  setOf("b2", "b3"),
			ShuttingDown: setOf("b1"),
		},
	}
	got, notify, err := Select(ControlledShutdown, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Leader != "b2" {
		t.Errorf("leader = %s, want b2", got.Leader)
	}
	if !reflect.DeepEqual(got.ISR, []string{"b2", "b3"}) {
		t.Errorf("isr = %v, want [b2 b3]", got.ISR)
	}
	if !reflect.DeepEqual(notify, []string{"b1", "b2", "b3"}) {
		t.Errorf("notify = %v, want full live+shutting-down AR", notify)
	}
}

func TestControlledShutdown_FailsWhenNoneAvailable(t *testing.T) {
	ctx := Context{
		AssignedReplicas: []string{"b1"},
		Current:          LeaderAndIsr{Leader: "b1", ISR: []string{"b1"}},
		Cluster:          ClusterState{ShuttingDown: setOf("b1")},
	}
	_, _, err := Select(ControlledShutdown, ctx)
	if !errors.Is(err, ErrStateChangeFailed) {
		t.Errorf("got %v, want ErrStateChangeFailed", err)
	}
}

func TestNoOp_ReturnsCurrentUnchanged(t *testing.T) {
	ctx := Context{
		AssignedReplicas: []string{"b1", "b2"},
		Current:          LeaderAndIsr{Leader: "b1", LeaderEpoch: 4, ISR: []string{"b1", "b2"}, ZKVersion: 4},
	}
	got, notify, err := Select(NoOp, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, ctx.Current) {
		t.Errorf("NoOp changed state: got %+v", got)
	}
	if !reflect.DeepEqual(notify, ctx.AssignedReplicas) {
		t.Errorf("notify = %v, want AR", notify)
	}
}

func TestEveryTransition_BumpsEpochAndVersionTogether(t *testing.T) {
	ctx := Context{
		AssignedReplicas: []string{"b1", "b2"},
		Current:          LeaderAndIsr{Leader: "b2", LeaderEpoch: 10, ISR: []string{"b1", "b2"}, ZKVersion: 20},
		Cluster:          ClusterState{LiveBrokers: setOf("b1", "b2")},
	}
	got, _, err := Select(PreferredReplica, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.LeaderEpoch != ctx.Current.LeaderEpoch+1 {
		t.Errorf("epoch = %d, want %d", got.LeaderEpoch, ctx.Current.LeaderEpoch+1)
	}
	if got.ZKVersion != ctx.Current.ZKVersion+1 {
		t.Errorf("zk_version = %d, want %d", got.ZKVersion, ctx.Current.ZKVersion+1)
	}
}

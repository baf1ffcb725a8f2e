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
Package election selects a partition's next leader and in-sync replica set
in response to a broker failure, a partition reassignment, a preferred-leader
rebalance, a controlled shutdown, or no change at all.

Every strategy shares one entry point, Select, and the same contract:
given the partition's current LeaderAndIsr and enough cluster context to
decide, it returns a new LeaderAndIsr with LeaderEpoch and ZKVersion each
bumped by one, plus the set of brokers that must be notified of the change.
NoOp is the exception: it returns the current LeaderAndIsr unchanged.
Select does not persist anything; the caller commits the result (in FlyMQ,
via a Raft-proposed command).

"First" always means first in AssignedReplicas order, never ISR order — the
preferred replica is always AssignedReplicas[0].
*/
package election

import "errors"

// LeaderAndIsr is a partition's leadership state.
type LeaderAndIsr struct {
	Leader      string
	LeaderEpoch uint64
	ISR         []string
	ZKVersion   uint64
}

// ClusterState is the read-only view of cluster liveness a selector needs.
type ClusterState struct {
	LiveBrokers            map[string]bool
	ShuttingDown           map[string]bool
	UncleanElectionEnabled bool
}

// Context bundles everything a single Select call needs.
type Context struct {
	AssignedReplicas []string
	Current          LeaderAndIsr
	Cluster          ClusterState

	// ReassignTarget is only consulted by Reassigned: the replica set the
	// partition is being moved to.
	ReassignTarget []string
}

// Strategy identifies which of the five selectors to run.
type Strategy int

const (
	// Offline selects a new leader after the previous leader died.
	Offline Strategy = iota
	// Reassigned selects a leader from the target set of an in-flight
	// partition reassignment.
	//
	// Precondition (undocumented in the source this is ported from, but
	// load-bearing): ReassignTarget must already be reflected in
	// Current.ISR by an upstream step. Callers that invoke Reassigned
	// before that holds will always see ErrNoReplicaOnline ("none in
	// ISR"), even when every target replica is alive.
	Reassigned
	// PreferredReplica rebalances leadership back to AssignedReplicas[0].
	PreferredReplica
	// ControlledShutdown moves leadership off a broker that announced a
	// graceful shutdown.
	ControlledShutdown
	// NoOp returns the current state unchanged.
	NoOp
)

var (
	ErrNoReplicaOnline   = errors.New("election: no replica online")
	ErrElectionNotNeeded = errors.New("election: preferred replica is already leader")
	ErrStateChangeFailed = errors.New("election: state change invariants violated")
)

// Select runs the given strategy and returns the new leadership state and
// the set of brokers to notify. On failure, the returned LeaderAndIsr is the
// zero value and the caller must leave the partition in its prior state.
func Select(strategy Strategy, ctx Context) (LeaderAndIsr, []string, error) {
	switch strategy {
	case Offline:
		return selectOffline(ctx)
	case Reassigned:
		return selectReassigned(ctx)
	case PreferredReplica:
		return selectPreferredReplica(ctx)
	case ControlledShutdown:
		return selectControlledShutdown(ctx)
	case NoOp:
		return selectNoOp(ctx)
	default:
		return LeaderAndIsr{}, nil, errors.New("election: unknown strategy")
	}
}

func intersect(a []string, inSet map[string]bool) []string {
	out := make([]string, 0, len(a))
	for _, x := range a {
		if inSet[x] {
			out = append(out, x)
		}
	}
	return out
}

func toSet(xs []string) map[string]bool {
	s := make(map[string]bool, len(xs))
	for _, x := range xs {
		s[x] = true
	}
	return s
}

func bump(cur LeaderAndIsr, leader string, isr []string) LeaderAndIsr {
	return LeaderAndIsr{
		Leader:      leader,
		LeaderEpoch: cur.LeaderEpoch + 1,
		ISR:         isr,
		ZKVersion:   cur.ZKVersion + 1,
	}
}

// selectOffline implements the "previous leader died" strategy (§4.B.1).
func selectOffline(ctx Context) (LeaderAndIsr, []string, error) {
	ar := ctx.AssignedReplicas
	if len(ar) == 0 {
		return LeaderAndIsr{}, nil, ErrNoReplicaOnline
	}

	liveAR := intersect(ar, ctx.Cluster.LiveBrokers)
	liveISRSet := toSet(intersect(ctx.Current.ISR, ctx.Cluster.LiveBrokers))

	if len(liveISRSet) > 0 {
		for _, b := range ar {
			if liveISRSet[b] {
				liveISR := intersect(ctx.Current.ISR, ctx.Cluster.LiveBrokers)
				return bump(ctx.Current, b, liveISR), liveAR, nil
			}
		}
	}

	if !ctx.Cluster.UncleanElectionEnabled {
		return LeaderAndIsr{}, nil, ErrNoReplicaOnline
	}
	if len(liveAR) == 0 {
		return LeaderAndIsr{}, nil, ErrNoReplicaOnline
	}

	// Unclean election: pick the head of the live assigned-replica list,
	// accepting possible data loss. Callers must count this transition in
	// their unclean-election metric.
	newLeader := liveAR[0]
	return bump(ctx.Current, newLeader, []string{newLeader}), liveAR, nil
}

// selectReassigned implements the reassignment strategy (§4.B.2). See the
// Reassigned strategy's doc comment for its undocumented precondition.
func selectReassigned(ctx Context) (LeaderAndIsr, []string, error) {
	if len(ctx.ReassignTarget) == 0 {
		return LeaderAndIsr{}, nil, errorf(ErrNoReplicaOnline, "empty reassignment")
	}

	liveSet := ctx.Cluster.LiveBrokers
	isrSet := toSet(ctx.Current.ISR)

	for _, candidate := range ctx.ReassignTarget {
		if liveSet[candidate] && isrSet[candidate] {
			return bump(ctx.Current, candidate, ctx.Current.ISR), ctx.ReassignTarget, nil
		}
	}
	return LeaderAndIsr{}, nil, errorf(ErrNoReplicaOnline, "none in ISR")
}

// selectPreferredReplica implements preferred-replica rebalance (§4.B.3).
func selectPreferredReplica(ctx Context) (LeaderAndIsr, []string, error) {
	ar := ctx.AssignedReplicas
	if len(ar) == 0 {
		return LeaderAndIsr{}, nil, ErrStateChangeFailed
	}
	preferred := ar[0]

	if preferred == ctx.Current.Leader {
		return LeaderAndIsr{}, nil, ErrElectionNotNeeded
	}
	if !ctx.Cluster.LiveBrokers[preferred] || !toSet(ctx.Current.ISR)[preferred] {
		return LeaderAndIsr{}, nil, ErrStateChangeFailed
	}
	return bump(ctx.Current, preferred, ctx.Current.ISR), ar, nil
}

// selectControlledShutdown implements the controlled-shutdown strategy
// (§4.B.4).
func selectControlledShutdown(ctx Context) (LeaderAndIsr, []string, error) {
	ar := ctx.AssignedReplicas
	newISR := make([]string, 0, len(ctx.Current.ISR))
	for _, b := range ctx.Current.ISR {
		if !ctx.Cluster.ShuttingDown[b] {
			newISR = append(newISR, b)
		}
	}

	liveOrShuttingDown := make(map[string]bool, len(ctx.Cluster.LiveBrokers))
	for b := range ctx.Cluster.LiveBrokers {
		liveOrShuttingDown[b] = true
	}
	for b := range ctx.Cluster.ShuttingDown {
		liveOrShuttingDown[b] = true
	}
	liveAR := intersect(ar, liveOrShuttingDown)

	newISRSet := toSet(newISR)
	for _, b := range liveAR {
		if newISRSet[b] {
			return bump(ctx.Current, b, newISR), liveAR, nil
		}
	}
	return LeaderAndIsr{}, nil, ErrStateChangeFailed
}

// selectNoOp returns the current assignment unchanged (§4.B.5).
func selectNoOp(ctx Context) (LeaderAndIsr, []string, error) {
	return ctx.Current, ctx.AssignedReplicas, nil
}

type wrappedError struct {
	base   error
	reason string
}

func (e *wrappedError) Error() string { return e.base.Error() + ": " + e.reason }
func (e *wrappedError) Unwrap() error { return e.base }

func errorf(base error, reason string) error {
	return &wrappedError{base: base, reason: reason}
}

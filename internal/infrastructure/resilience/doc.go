/*
Package resilience provides the circuit breaker the loader wraps around host
loads, one breaker per container.

# Overview

A container whose package is corrupt or whose backing store went away keeps
failing every load. The breaker turns that stream of slow failures into fast
ones until the container has had time to recover.

# Usage

	group := resilience.NewGroup(resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	obj, err := resilience.Execute(group.Get("ui"), func() (host.Object, error) {
		return container.Load(ctx, record)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience

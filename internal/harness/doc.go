// Package harness runs YAML scenarios against a broadcaster and an
// ir.IRObject store and checks the resulting trace.
//
// # Scenario Format
//
//	name: counter_feedback
//	description: "increment events feed back through a reaction"
//	run_id: run-counter            # optional, fixed for golden comparison
//	initial_state: { count: 0 }
//	schema: |                      # optional CUE, checked on every accepted state
//	  count: int & >=0
//	reactions:                     # store handlers, one per event kind
//	  - on: increment
//	    add: { count: 1 }          # lazy integer addition
//	    patch: { last: "inc" }     # merge patch, null deletes
//	    emit: { type: incremented }
//	    dispatch:                  # dispatched straight on the broadcaster
//	      - { type: audit }
//	steps:                         # exactly one action per step
//	  - dispatch: { type: increment }
//	  - emit: { type: ping }
//	  - patch: { mode: "fast" }
//	  - add: { count: 2 }
//	assertions:
//	  - type: final_state
//	    expect: { count: 3 }
//	  - type: state_count
//	    count: 4
//	  - type: event_order
//	    kinds: [increment, audit, incremented, ping]
//	  - type: event_count
//	    kind: increment
//	    count: 1
//
// # Step Actions
//
//   - dispatch: Broadcaster.Dispatch of the event
//   - emit: Store.DispatchEvent of the event
//   - patch: Store.UpdateState with an ir.Patch
//   - add: Store.Update adding integers to fields of the state current at execution
//
// A reaction's operation runs before its dispatch events are parked; the
// parked events then drain newest first, which is why audit precedes
// incremented above.
//
// # Assertion Types
//
//   - final_state: expect is a subset of the final state (nested objects too)
//   - state_count: number of published states, the initial replay included
//   - event_order: the complete ordered list of fanned-out event kinds
//   - event_count: number of fan-outs of one kind
//
// # Deterministic Testing
//
// Runs use testutil.DeterministicClock and a fixed run ID, so a scenario
// always produces the same trace and golden files compare byte for byte.
package harness

// Package ir provides the structural value model shared by the harness,
// the trace recorder and the journal: a sealed set of JSON-like values,
// merge patches over objects, deep cloning, and canonical hashing.
//
// The core event and store packages do not depend on ir for their contract;
// they are generic over any event and state type. ir is the concrete
// value model the tooling layers plug into them.
//
// Design constraints:
//   - No float type; numbers are int64 so equality and hashes are exact
//   - Objects iterate in RFC 8785 key order wherever order is observable
//   - Values are never mutated after construction; Patch and Clone return copies
//   - JSON tags use snake_case
package ir

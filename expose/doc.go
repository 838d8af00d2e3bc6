// Package expose partitions study windows against raw exposure episodes
// into canonical person-time tables.
//
// The Partitioner sweeps each subject's sorted episode boundaries and emits
// a gapless, non-overlapping state sequence covering exactly [entry, exit):
// overlapping episodes resolve to one visible state per an overlap policy,
// interruptions bridge per grace and merge thresholds, uncovered spans fill
// with the reference state, and optional projections re-encode the resolved
// sequence (ever-treated, current/former, cumulative duration, recency,
// dose).
//
// INVARIANTS (hold for every successful run):
//   - Per subject, sum(stop-start) == exit - entry (person-time conservation).
//   - Rows are sorted by (id, start) with row[i].Stop == row[i+1].Start.
//   - Cumulative accumulator columns never decrease along a subject's rows.
//   - Results are deterministic: same inputs and spec give identical bytes,
//     regardless of worker count.
//
// Subjects are independent, so the run fans out per subject and concatenates
// buffers in ascending id order.
package expose

// Package merge intersects two or more canonical interval tables into one
// joint-state table.
//
// Each input must be gapless and non-overlapping per subject. The output
// covers, per subject, the intersection of the inputs' covered ranges; its
// value columns are either the inputs' columns carried side by side
// (renamed or prefixed to stay distinct) or a single joint-exposure
// indicator.
//
// INVARIANTS:
//   - Output rows per subject are sorted, non-overlapping, and bounded by
//     the intersection of all inputs' coverage.
//   - A continuous column's total across a subject's output never exceeds
//     its total in the source table, with equality exactly when no source
//     row was truncated.
//   - Output is deterministic for the same spec and inputs regardless of
//     worker count.
package merge

// Package event integrates outcome and competing-risk dates into a
// canonical interval table.
//
// Each subject's event record resolves to at most one effective date and
// status code (the earliest of the primary and competing dates, ties to the
// primary). Rows containing an effective date are split there, the row
// ending at the date is flagged with the status code, and under terminal
// semantics everything after the date is dropped. Risk begins strictly
// after a row's start, so a date equal to a row's start is never attributed
// to that row.
//
// INVARIANTS:
//   - Under Single semantics output person-time never exceeds input
//     person-time, and at most one row per subject carries a positive flag.
//   - Under Recurring semantics person-time is conserved exactly.
//   - A continuous column's subject total is conserved across splits and
//     only reduced by censoring.
//   - Output is deterministic for the same spec and inputs regardless of
//     worker count.
package event

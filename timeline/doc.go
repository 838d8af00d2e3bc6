// Package timeline provides the canonical data model for person-time tables.
//
// This package contains type definitions, canonical encoding, and structural
// diagnostics only. All other packages import timeline; timeline imports
// nothing from this module. This keeps it the foundational layer with no
// circular dependencies.
//
// Time convention (binds every producer and consumer):
//   - An output Interval {start, stop} covers the half-open day span
//     [start, stop); its person-time is stop - start days.
//   - A subject's sorted rows tile the study window exactly:
//     rows[i].Stop == rows[i+1].Start, and the total person-time equals
//     exit - entry.
//   - An Episode {start, stop} is a closed day range (a one-day episode has
//     start == stop); producers convert it to the boundary span
//     [start, stop+1).
//
// Numbers are int64 day counts. Calendar meaning is only assigned at the
// edges (day 0 = 1970-01-01 UTC); the core never touches wall clocks.
package timeline

// Package store persists cohorts and produced interval tables in SQLite.
//
// One database file holds the three input shapes (study windows, episodes,
// event records), every produced interval table with its value columns as
// one canonical JSON array per row, and the run provenance needed to
// reproduce each table. WAL mode keeps concurrent readers off the single
// writer. Every read orders by subject id so downstream consumers see
// deterministic rows, and subject filters compile to parameterized WHERE
// clauses so large cohorts can stream one id slice at a time.
package store

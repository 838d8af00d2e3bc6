// Package protocol compiles CUE study protocols into typed stage
// configurations.
//
// A protocol file declares, under one "protocol" block, the exposure
// partitioning, table intersection, and event splitting a study runs,
// using the same field vocabulary the stage specs fingerprint. Compilation
// collects every problem rather than stopping at the first: unknown
// fields, wrong types, and enum strings outside their vocabulary are
// reported with CUE source positions, and the compiled specs' own
// validation errors are folded in under their original codes.
package protocol

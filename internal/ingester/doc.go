// Package ingester turns a classified export file into normalized rows.
//
// # Execution strategies
//
// Two strategies share one contract. Files at or below the bulk threshold
// are read whole and walked with gjson; larger files are parsed as an
// incremental token stream that holds at most the current record in
// memory. Both strategies feed the same normalization functions on raw
// record bytes, so their output cannot diverge.
//
// For generic categories the streaming path probes each candidate
// record-array location in turn, reading only enough of the stream to see
// whether it yields at least one object, before committing to that
// location for the full pass. Message-thread files are read in three
// phases (title, participants, messages), re-opening the stream per phase.
//
// # Atomicity
//
// Each file is one transaction: its rows plus its tracker entry commit
// together or roll back together. A parse failure aborts that file only;
// the run continues with the next file. A file with no detectable record
// array yields zero rows, a warning, and is still marked ingested.
//
// # Identity
//
// Row IDs are content-addressable digests of (category, source path,
// in-file index, best-effort fields), making re-ingestion of unchanged
// content idempotent and keeping changed content from overwriting
// unrelated history.
package ingester

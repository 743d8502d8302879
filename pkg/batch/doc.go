// Package batch buffers processed records and flushes them to immutable,
// sequentially numbered CSV files, and merges a session's batch files into
// one output.
//
// Layout on disk:
//
//	{root}/{sessionId}/{sessionId}_batch_000000.csv
//	{root}/{sessionId}/{sessionId}_batch_000001.csv
//	...
//
// The zero-padded index makes lexical order equal flush order. Every batch of
// a session carries the same header row, fixed when the Writer is created.
// Rows that need a variable number of sub-records must encode them inside a
// single cell (for example as a JSON array) rather than adding columns.
package batch

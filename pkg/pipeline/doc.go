// Package pipeline drives a collection session: it iterates the session's
// work items in order, paces them through a rate limiter, hands them to a
// Processor, buffers successful rows into batch files and checkpoints
// progress at every batch boundary.
//
// Failure policy: item-level failures (invalid data, upstream failures,
// processor panics) are recorded and the loop continues. Infrastructure
// failures (checkpoint or batch I/O) stop the session, which is then
// persisted in the error state with the progress of its last checkpoint.
//
// Ordering: a batch file is durably renamed into place before the checkpoint
// that counts it is saved. A crash between the two leaves a batch file with
// an index >= the checkpoint's currentBatch; Resume deletes such files and
// reprocesses their items.
package pipeline

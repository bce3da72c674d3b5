// Package jobs defines the library's batch jobs on top of the chunk engine.
//
// Each job pairs a record query (or the intake queue) with a processor and a
// writer that saves records and fires lifecycle events inside the chunk
// transaction:
//
//   - import: consume queued descriptors into CREATED records, then fire ready
//   - load-contents: hash archives of UNPROCESSED records
//   - mark-blocked-pages: count blocked pages by archive hash
//   - update-missing: flag records whose archive vanished or came back
//   - organize: move archives to the renaming-rule path and fire consolidate
//   - purge: fire purge for DELETED records, optionally removing files and rows
//
// Writers work on clones of the records they are handed, so a retried chunk
// starts again from the state that was read.
package jobs

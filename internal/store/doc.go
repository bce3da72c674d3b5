// Package store persists the comic library in SQLite.
//
// A single Store serves as the record repository (Find, FindBatch, Save,
// Delete), the intake queue consumed by the import job, the job-run
// repository used by the batch launcher, and the transition audit log.
// InChunk opens a transaction that every Store call made with the derived
// context joins, which is how chunk writers get all-or-nothing commits.
package store

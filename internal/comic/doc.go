// Package comic defines the comic record, its lifecycle states and events,
// and the Criteria selectors used to pick records for batch processing.
package comic

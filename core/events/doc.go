// Package events defines the dispatch related events emitted on the event bus.
//
// Available event types:
//   - AssignmentEvent: an order was committed to a vehicle
//   - ConflictEvent: a commit lost its compare-and-swap
//   - StatusEvent: an order moved through its delivery workflow
//   - BatchEvent: summary of a batch assignment run
package events

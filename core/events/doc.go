// Package events defines the pipeline events emitted on the event bus.
//
// Available event types:
//   - IngestCompleted: a plan upload was persisted as a new version
//   - BagsIngested: the bag pickup rows of a period were replaced
//   - DraftsGenerated: drafts were regenerated for a period
//   - DeliveryAttempted: one send attempt finished, successfully or not
//   - PeriodDispatched: a dispatch batch finished
package events

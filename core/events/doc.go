// Package events defines the run events emitted on the event bus.
//
// Available event types:
//   - PeriodAllocatedEvent: a period was dispatched
//   - ShortfallEvent: a period left demand unmet
//   - SourceRejectedEvent: a source was skipped by the CO2 budget
//   - InvalidPeriodEvent: a period failed validation
//   - RunCompletedEvent: all periods were processed
package events

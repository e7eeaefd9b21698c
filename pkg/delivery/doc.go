// Package delivery orchestrates multi-channel notification delivery.
//
// An Orchestrator accepts a DeliveryRequest, renders it through a
// render.Renderer, hands it to the channel's transport.Transport and records
// every step in a Store. Each call makes at most one transport attempt; a
// failed notification with retry budget left is resubmitted later by
// RetryFailed, usually driven by a Sweeper on a cron schedule.
//
// Statuses follow a small state machine:
//
//	pending -> sent -> delivered
//	                -> failed -> pending (retry sweep, budget left)
//	pending -> failed (template error, never retried)
//
// Writes to one notification are serialised by a Locker and guarded by an
// optimistic Version check in the Store, so the sweep and live deliveries
// never race on the same id.
//
// BatchCoordinator fans a BulkDeliveryRequest out in fixed-size chunks,
// running each chunk concurrently and pausing between chunks.
package delivery

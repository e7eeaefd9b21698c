// Package events carries domain events such as notification_delivered out of
// the delivery pipeline.
//
// Bus is an in-process fan-out with per-subscriber buffers and optional type
// filters. RedisPublisher publishes the same events over Redis pub/sub and
// can Forward them back into a local Bus in another process. Multi combines
// publishers.
package events

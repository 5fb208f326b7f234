// Package queue contains the broker-side pieces of slot change
// eventing: the queue name shared by publisher and consumer, and the
// background consumer that turns events into an activity log.
package queue

// SlotChangedQueue is the durable queue slot change events travel on.
// The payload is engine.SlotChangedEvent serialized as JSON.
const SlotChangedQueue = "slot.changed"

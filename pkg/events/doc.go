/*
Package events provides an in-memory event broker for the ledger storage
engine's pub/sub notifications.

The events package implements a lightweight, non-blocking event bus for
broadcasting storage-engine notifications — currently only block.add —
to interested subscribers, such as a consensus layer deciding when to
advance or an operator console tailing ledger activity. It decouples
BlockStore from any one consumer: a Broker with no subscribers, or a
StorageHandle built with a nil Broker, behaves identically except that
nothing is published.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Println(event.Type, event.Metadata["blockHeight"])
		}
	}()

# Delivery

Publish never blocks the caller beyond handing the event to an internal
buffered channel; broadcast to subscribers is best-effort — a subscriber
whose own buffer is full simply misses the notification rather than
stalling BlockStore.Add.
*/
package events

/*
Package events provides an in-memory event broker for cluster-sync lifecycle
notifications: worker connect/hello/disconnect, per-round sync outcomes, and
snapshot recomputation.

Publish blocks only until the broker's internal 100-event queue accepts the
event (or the broker is stopped), and delivery is best effort — a
subscriber with a full buffer skips the event rather than stalling the
broadcast loop. This
makes the broker suitable for metrics/logging observers, not for anything
that needs guaranteed delivery.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			log.Info(string(event.Type) + ": " + event.Message)
		}
	}()

	broker.Publish(&events.Event{
		Type:    events.EventIntegritySynced,
		Message: "worker-03 integrity sync completed",
	})
*/
package events

package service

// Live update event types pushed to the UI.
const (
	EventCheckoutState = "checkout.state"
	EventCartUpdated   = "cart.updated"
	EventSessionEnded  = "session.ended"
)

// EventPublisher pushes an event to the UI connections of one user.
type EventPublisher interface {
	Publish(userID, eventType string, payload interface{})
}

func publish(p EventPublisher, userID, eventType string, payload interface{}) {
	if p == nil || userID == "" {
		return
	}
	p.Publish(userID, eventType, payload)
}

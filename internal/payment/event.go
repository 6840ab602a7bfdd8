package payment

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// Event is the subset of a gateway webhook payload the service acts on.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type" binding:"required"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (e Event) IntentID() string {
	return e.Data.Object.ID
}

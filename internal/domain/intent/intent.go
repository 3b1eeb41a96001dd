// Package intent defines the recognized customer intents and classifier output.
package intent

// Intent is the label assigned to a customer message by the classifier.
type Intent string

const (
	RefundRequest      Intent = "REFUND_REQUEST"
	StatusQuery        Intent = "STATUS_QUERY"
	Tracking           Intent = "TRACKING"
	WalletQuery        Intent = "WALLET_QUERY"
	SubscriptionUpdate Intent = "SUBSCRIPTION_UPDATE"
	Unknown            Intent = "UNKNOWN"
)

// Recognized reports whether the intent is one the engine can route.
func Recognized(i Intent) bool {
	switch i {
	case RefundRequest, StatusQuery, Tracking, WalletQuery, SubscriptionUpdate:
		return true
	}
	return false
}

// Prediction is the classifier output for one message.
type Prediction struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

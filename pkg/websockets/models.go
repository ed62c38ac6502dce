package websockets

// MessageType defines the type of a WebSocket message.
type MessageType string

const (
	// MessageTypeBalanceUpdate is sent whenever an account balance changes.
	MessageTypeBalanceUpdate MessageType = "balanceUpdate"
)

// Message represents a generic WebSocket message.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// BalanceUpdatePayload is the payload for a balanceUpdate message.
type BalanceUpdatePayload struct {
	TelegramID string `json:"telegramId"`
	PaymentID  int64  `json:"paymentId,omitempty"`
	Change     int64  `json:"change"`
	NewBalance int64  `json:"balanceStars"`
	Reason     string `json:"reason"`
}

// NewBalanceUpdate builds a balanceUpdate message.
func NewBalanceUpdate(payload BalanceUpdatePayload) Message {
	return Message{Type: MessageTypeBalanceUpdate, Payload: payload}
}

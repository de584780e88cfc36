package queue

import "encoding/json"

// Message asks a worker to run one analysis.
type Message struct {
	SubscriptionID string `json:"subscriptionId"`
	UserID         string `json:"userId"`
	AnalysisPeriod string `json:"analysisPeriod,omitempty"`
	RequestID      string `json:"requestId"`
	EnqueuedAt     string `json:"enqueuedAt"`
	Version        int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

package amqp

import (
	"encoding/json"
	"time"
)

// DocumentSavedMessage signals that a new revision of the state document
// reached the primary store. The mirror worker reloads the full document on
// receipt; the message carries no entity data on purpose.
type DocumentSavedMessage struct {
	Revision  int64     `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

func NewDocumentSavedMessage(revision int64) *DocumentSavedMessage {
	return &DocumentSavedMessage{
		Revision:  revision,
		Timestamp: time.Now(),
	}
}

func (m *DocumentSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DocumentSavedMessageFromJSON(data []byte) (*DocumentSavedMessage, error) {
	var msg DocumentSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

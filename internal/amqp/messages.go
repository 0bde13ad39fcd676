package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChangeOp is the kind of write a record change message announces.
type ChangeOp string

const (
	OpPut    ChangeOp = "put"
	OpRemove ChangeOp = "remove"
)

// RecordChangeMessage announces that a record document was written or
// removed. It carries only the id; consumers read the current state from
// the store.
type RecordChangeMessage struct {
	ID         string    `json:"id"`
	Op         ChangeOp  `json:"op"`
	Collection string    `json:"collection,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewRecordChangeMessage(id string, op ChangeOp, collection string) *RecordChangeMessage {
	return &RecordChangeMessage{
		ID:         id,
		Op:         op,
		Collection: collection,
		Timestamp:  time.Now().UTC(),
	}
}

func (m *RecordChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangeMessageFromJSON decodes and validates a message body.
func RecordChangeMessageFromJSON(data []byte) (*RecordChangeMessage, error) {
	var msg RecordChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("record change message without id")
	}
	switch msg.Op {
	case OpPut, OpRemove:
	default:
		return nil, fmt.Errorf("unknown record change op %q", msg.Op)
	}
	return &msg, nil
}

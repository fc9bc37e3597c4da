package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a change to a bill or one of its payments.
type EventType string

const (
	BillUpserted    EventType = "bill.upserted"
	BillDeleted     EventType = "bill.deleted"
	PaymentUpserted EventType = "payment.upserted"
	PaymentDeleted  EventType = "payment.deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case BillUpserted, BillDeleted, PaymentUpserted, PaymentDeleted:
		return true
	}
	return false
}

// BillEventMessage announces a change. It carries identifiers only; the
// consumer reloads the current state from the database.
type BillEventMessage struct {
	Type      EventType `json:"type"`
	BillID    string    `json:"bill_id"`
	PaymentID string    `json:"payment_id,omitempty"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBillEventMessage(t EventType, billID, paymentID string, version int64) *BillEventMessage {
	return &BillEventMessage{
		Type:      t,
		BillID:    billID,
		PaymentID: paymentID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *BillEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BillEventMessageFromJSON decodes and checks a bill event.
func BillEventMessageFromJSON(data []byte) (*BillEventMessage, error) {
	var msg BillEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.BillID == "" {
		return nil, fmt.Errorf("event %s without bill id", msg.Type)
	}
	if (msg.Type == PaymentUpserted || msg.Type == PaymentDeleted) && msg.PaymentID == "" {
		return nil, fmt.Errorf("event %s without payment id", msg.Type)
	}
	return &msg, nil
}

// ReminderMessage is a notification ready to be delivered to the user.
type ReminderMessage struct {
	ReminderID string    `json:"reminder_id"`
	BillID     string    `json:"bill_id"`
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	DueDate    string    `json:"due_date"`
	TriggerAt  time.Time `json:"trigger_at"`
	Timestamp  time.Time `json:"timestamp"`
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Resources named in a LedgerChanged message.
const (
	ResourceTransactions = "transactions"
	ResourceTemplates    = "templates"
	ResourceCategories   = "categories"
	ResourceBudgets      = "budgets"
)

var knownResources = map[string]bool{
	ResourceTransactions: true,
	ResourceTemplates:    true,
	ResourceCategories:   true,
	ResourceBudgets:      true,
}

// LedgerChanged tells the sync worker that a collection was saved. It
// carries no rows; the worker re-reads the primary store and mirrors the
// whole collection.
type LedgerChanged struct {
	Resource  string    `json:"resource"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChanged(resource string, count int) *LedgerChanged {
	return &LedgerChanged{
		Resource:  resource,
		Count:     count,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChanged) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedFromJSON decodes and checks a message body.
func LedgerChangedFromJSON(data []byte) (*LedgerChanged, error) {
	var msg LedgerChanged
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !knownResources[msg.Resource] {
		return nil, fmt.Errorf("unknown resource %q", msg.Resource)
	}
	return &msg, nil
}

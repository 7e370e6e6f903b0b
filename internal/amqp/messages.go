package amqp

import (
	"encoding/json"
	"time"
)

// BudgetRepairMessage asks the repair worker to run a full spent recompute
// for one budget. It carries only the id and the failure reason; the worker
// reads current state from the database.
type BudgetRepairMessage struct {
	BudgetID  string    `json:"budget_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBudgetRepairMessage(budgetID, reason string) *BudgetRepairMessage {
	return &BudgetRepairMessage{
		BudgetID:  budgetID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *BudgetRepairMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetRepairMessageFromJSON(data []byte) (*BudgetRepairMessage, error) {
	var msg BudgetRepairMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

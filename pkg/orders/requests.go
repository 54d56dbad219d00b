package orders

import "time"

// CreateRequest is the body of POST /orders.
type CreateRequest struct {
	TableID       string `json:"tableId"`
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
	Lines         []Line `json:"lines"`
}

// StatusUpdate is the body of PATCH /orders/{id}/status. ETAMinutes is a
// convenience for staff views; an explicit EstimatedReadyAt wins.
type StatusUpdate struct {
	Status           string     `json:"status"`
	EstimatedReadyAt *time.Time `json:"estimatedReadyAt,omitempty"`
	ETAMinutes       *int       `json:"etaMinutes,omitempty"`
}

// ReadyAt resolves the requested ETA against now.
func (u StatusUpdate) ReadyAt(now time.Time) *time.Time {
	if u.EstimatedReadyAt != nil {
		t := *u.EstimatedReadyAt
		return &t
	}
	if u.ETAMinutes != nil && *u.ETAMinutes > 0 {
		t := now.Add(time.Duration(*u.ETAMinutes) * time.Minute)
		return &t
	}
	return nil
}

package tracking

import (
	"fmt"
	"time"

	"github.com/appetiteclub/tableside/pkg/enums/orderstatus"
	"github.com/appetiteclub/tableside/pkg/orders"
)

const readyNowText = "Ready now"

// Step is one entry of the progress indicator.
type Step struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Done    bool   `json:"done"`
	Current bool   `json:"current"`
}

// ETA is the presented remaining time until the order is ready.
type ETA struct {
	Known    bool   `json:"known"`
	ReadyNow bool   `json:"readyNow"`
	Minutes  int    `json:"minutes"`
	Text     string `json:"text,omitempty"`
}

// View is what a tracking screen renders for an order.
type View struct {
	Found     bool          `json:"found"`
	Order     *orders.Order `json:"order,omitempty"`
	Status    string        `json:"status,omitempty"`
	StepIndex int           `json:"stepIndex"`
	Steps     []Step        `json:"steps"`
	ETA       ETA           `json:"eta"`
	Terminal  bool          `json:"terminal"`
}

// Derive computes the view of o at now. A nil order yields the not found
// view.
func Derive(o *orders.Order, now time.Time) View {
	if o == nil {
		return View{Found: false, Steps: steps(-1)}
	}

	index := orderstatus.StepIndex(o.Status)
	status := orderstatus.Normalize(o.Status)
	if orderstatus.ByName(status) == nil {
		status = orderstatus.All[index].Name
	}

	return View{
		Found:     true,
		Order:     o,
		Status:    status,
		StepIndex: index,
		Steps:     steps(index),
		ETA:       Remaining(o.EstimatedReadyAt, now),
		Terminal:  orderstatus.IsFinal(o.Status),
	}
}

// Remaining presents the time left until readyAt, rounded up to whole
// minutes. Nothing left reads as ready now.
func Remaining(readyAt *time.Time, now time.Time) ETA {
	if readyAt == nil || readyAt.IsZero() {
		return ETA{}
	}

	left := readyAt.Sub(now)
	if left <= 0 {
		return ETA{Known: true, ReadyNow: true, Text: readyNowText}
	}

	minutes := int((left + time.Minute - 1) / time.Minute)
	return ETA{
		Known:   true,
		Minutes: minutes,
		Text:    fmt.Sprintf("%d min", minutes),
	}
}

func steps(current int) []Step {
	out := make([]Step, len(orderstatus.All))
	for i, s := range orderstatus.All {
		out[i] = Step{
			Name:    s.Name,
			Label:   s.Label(),
			Done:    i <= current,
			Current: i == current,
		}
	}
	return out
}

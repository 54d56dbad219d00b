package orderstatus

import (
	"strings"
)

// Status is one step of the order lifecycle shown to diners and staff.
type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	if s.Name == "" {
		return ""
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

// Index returns the position of the status in the lifecycle, or -1 when the
// status is not part of it.
func (s Status) Index() int {
	for i, st := range All {
		if st.Name == s.Name {
			return i
		}
	}
	return -1
}

type Enum struct {
	Received  Status
	Preparing Status
	Ready     Status
	Served    Status
	Completed Status
}

var Statuses = Enum{
	Received:  Status{Name: "received"},
	Preparing: Status{Name: "preparing"},
	Ready:     Status{Name: "ready"},
	Served:    Status{Name: "served"},
	Completed: Status{Name: "completed"},
}

// All lists the statuses in lifecycle order.
var All = []Status{
	Statuses.Received,
	Statuses.Preparing,
	Statuses.Ready,
	Statuses.Served,
	Statuses.Completed,
}

// Normalize lower cases and trims a raw status value.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ByName returns the status for a given name, ignoring case, or nil if not found.
func ByName(name string) *Status {
	name = Normalize(name)
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

// StepIndex maps a raw status to its lifecycle position. Unknown or empty
// values resolve to the first step.
func StepIndex(name string) int {
	s := ByName(name)
	if s == nil {
		return 0
	}
	return s.Index()
}

// Final returns the last lifecycle status.
func Final() Status {
	return All[len(All)-1]
}

// IsFinal reports whether name is the last lifecycle status.
func IsFinal(name string) bool {
	return Normalize(name) == Final().Name
}

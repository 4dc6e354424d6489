// Package alert holds the weather alert model shared by the feed client,
// the dashboard filters and the campaign wizard.
package alert

import "time"

// AllEvents is the event filter value that matches every alert.
const AllEvents = "ALL"

// Alert is a single active weather warning, watch or advisory as published by
// the NWS feed. Alerts are read-only once fetched.
type Alert struct {
	ID          string    `json:"id"`
	Event       string    `json:"event"`
	Headline    string    `json:"headline,omitempty"`
	AreaDesc    string    `json:"areaDesc"`
	Severity    string    `json:"severity"`
	Certainty   string    `json:"certainty,omitempty"`
	Urgency     string    `json:"urgency,omitempty"`
	SenderName  string    `json:"senderName,omitempty"`
	Description string    `json:"description"`
	Instruction string    `json:"instruction,omitempty"`
	Effective   time.Time `json:"effective"`
	Expires     time.Time `json:"expires"`
}

// FilterByEvent returns the alerts whose Event equals event. An empty event
// or AllEvents returns every alert. The input slice is never modified.
func FilterByEvent(alerts []Alert, event string) []Alert {
	if event == "" || event == AllEvents {
		out := make([]Alert, len(alerts))
		copy(out, alerts)
		return out
	}
	out := make([]Alert, 0, len(alerts))
	for i := range alerts {
		if alerts[i].Event == event {
			out = append(out, alerts[i])
		}
	}
	return out
}

// EventTypes lists AllEvents followed by the distinct non-empty event names
// in the order they first appear.
func EventTypes(alerts []Alert) []string {
	seen := make(map[string]struct{}, len(alerts))
	out := []string{AllEvents}
	for i := range alerts {
		ev := alerts[i].Event
		if ev == "" {
			continue
		}
		if _, ok := seen[ev]; ok {
			continue
		}
		seen[ev] = struct{}{}
		out = append(out, ev)
	}
	return out
}

// Find looks an alert up by ID.
func Find(alerts []Alert, id string) (Alert, bool) {
	for i := range alerts {
		if alerts[i].ID == id {
			return alerts[i], true
		}
	}
	return Alert{}, false
}

// Package model defines the core records shared by the scoring and routing engine.
package model

import "time"

// Coordinate is a WGS84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Incident is one historical event as delivered by ingestion. It is never
// mutated after loading.
type Incident struct {
	ID         string      `json:"id"`
	Category   string      `json:"category"`
	OccurredAt time.Time   `json:"occurred_at"`
	Location   *Coordinate `json:"location,omitempty"`
	Area       int         `json:"area"`
}

// Complete reports whether the incident carries both a coordinate and a timestamp.
func (i Incident) Complete() bool {
	return i.Location != nil && !i.OccurredAt.IsZero()
}

// AttributedIncident is an incident annotated with its nearest street node
// and the calendar buckets derived from its timestamp.
type AttributedIncident struct {
	Incident
	NodeID    int64      `json:"node_id"`
	Hour      int        `json:"hour"`
	Month     time.Month `json:"month"`
	TimeOfDay TimeOfDay  `json:"time_of_day"`
	Season    Season     `json:"season"`
}

// Attribute derives the calendar fields for inc and pins it to nodeID.
// The input incident is copied, not modified.
func Attribute(inc Incident, nodeID int64) AttributedIncident {
	if inc.Location != nil {
		loc := *inc.Location
		inc.Location = &loc
	}
	return AttributedIncident{
		Incident:  inc,
		NodeID:    nodeID,
		Hour:      inc.OccurredAt.Hour(),
		Month:     inc.OccurredAt.Month(),
		TimeOfDay: TimeOfDayOf(inc.OccurredAt.Hour()),
		Season:    SeasonOf(inc.OccurredAt.Month()),
	}
}

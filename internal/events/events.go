// Package events is a small in-process pub/sub hub feeding the SSE
// endpoint. Slow subscribers drop events rather than stall a cycle.
package events

import (
	"encoding/json"
	"time"
)

const (
	TypeCycleStarted    = "cycle_started"
	TypeCycleFinished   = "cycle_finished"
	TypeListingAccepted = "listing_accepted"
	TypeSourceFailed    = "source_failed"
	TypeAlert           = "alert"
)

type Event struct {
	Type    string          `json:"type"`
	Version int             `json:"v"`
	At      time.Time       `json:"at"`
	CycleID string          `json:"cycle_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// MakeEvent stamps the envelope; data is marshalled once here so every
// subscriber sees the same payload.
func MakeEvent(cycleID, typ string, data any) Event {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	return Event{
		Type:    typ,
		Version: 1,
		At:      time.Now().UTC(),
		CycleID: cycleID,
		Data:    raw,
	}
}

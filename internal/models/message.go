package models

import "time"

// Direction tells whether a message came from the lead or from the team.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

// Message is a single inbound or outbound entry in a lead's conversation log.
type Message struct {
	ID        string     `json:"id"`
	LeadID    string     `json:"lead_id"`
	Seq       int64      `json:"seq"`
	Direction Direction  `json:"direction"`
	Body      string     `json:"body,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// IsInbound reports whether the message was sent by the lead.
func (m Message) IsInbound() bool {
	return m.Direction == DirectionInbound
}

package model

import (
	"time"
)

// Edge is one directed relation instance between two entities, identified by external ids
type Edge struct {
	ID        int       `json:"id"`
	Relation  string    `json:"relation"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	CreatedAt time.Time `json:"created_at"`
}

// EdgeConnection represents an edge with directional information
type EdgeConnection struct {
	Edge       *Edge `json:"edge"`
	IsOutgoing bool  `json:"is_outgoing"`
}

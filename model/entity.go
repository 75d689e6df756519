package model

import (
	"time"

	"github.com/google/uuid"
)

// Entity is one typed node of the heterogeneous graph with its raw field values
type Entity struct {
	ID           int       `json:"id"`
	RID          uuid.UUID `json:"rid"`
	ExternalID   string    `json:"external_id"`
	Type         string    `json:"entity_type"`
	Fields       Values    `json:"fields,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
	AnomalyScore *float64  `json:"anomaly_score,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// EntityResult is an entity returned by a retrieval query
type EntityResult struct {
	Entity          *Entity         `json:"entity"`
	Score           float64         `json:"score"`
	RetrievalMethod RetrievalMethod `json:"retrieval_method"`
}

type RetrievalMethod string

const (
	RetrievalMethodSimilarity RetrievalMethod = "similarity"
	RetrievalMethodAnomaly    RetrievalMethod = "anomaly"
	RetrievalMethodNeighbor   RetrievalMethod = "neighbor"
	RetrievalMethodMultiHop   RetrievalMethod = "multi_hop"
	RetrievalMethodHybrid     RetrievalMethod = "hybrid"
)

package model

// ActivationKind names the nonlinearity used between layers
type ActivationKind string

const (
	ActivationReLU     ActivationKind = "relu"
	ActivationTanh     ActivationKind = "tanh"
	ActivationSigmoid  ActivationKind = "sigmoid"
	ActivationIdentity ActivationKind = "identity"
)

// SummarizerKind names the pooling applied to a set of neighbour bottlenecks
type SummarizerKind string

const (
	SummarizerMean SummarizerKind = "mean"
	SummarizerSum  SummarizerKind = "sum"
	SummarizerMax  SummarizerKind = "max"
)

// DeviceCPU is the only compute device supported
const DeviceCPU = "cpu"

// ModelConfig represents the construction parameters of a graph autoencoder
type ModelConfig struct {
	// Number of message passing rounds after the depth-0 autoencoder
	Depth int `json:"depth" yaml:"depth"`
	// Hidden layer widths of each entity autoencoder, the last one is the bottleneck.
	// Empty disables relation propagation.
	AutoencoderShapes []int          `json:"autoencoder_shapes" yaml:"autoencoder_shapes"`
	ReverseRelations  bool           `json:"reverse_relations" yaml:"reverse_relations"`
	Summarizer        SummarizerKind `json:"summarizer" yaml:"summarizer"`
	Activation        ActivationKind `json:"activation" yaml:"activation"`
	// Shared representation width, 0 selects the largest depth-0 boundary size
	ProjectedSize                int    `json:"projected_size,omitempty" yaml:"projected_size,omitempty"`
	BaseEntityRepresentationSize int    `json:"base_entity_representation_size" yaml:"base_entity_representation_size"`
	Device                       string `json:"device" yaml:"device"`
	// Seed for the deterministic weight initialisation
	Seed uint64 `json:"seed" yaml:"seed"`
	// Record per depth autoencoder inputs and outputs in the forward output
	CollectBoundaryPairs bool `json:"collect_boundary_pairs" yaml:"collect_boundary_pairs"`
}

// DefaultModelConfig returns a sensible default configuration
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Depth:                        1,
		AutoencoderShapes:            []int{32, 16},
		ReverseRelations:             true,
		Summarizer:                   SummarizerMean,
		Activation:                   ActivationReLU,
		ProjectedSize:                0,
		BaseEntityRepresentationSize: 8,
		Device:                       DeviceCPU,
		Seed:                         1,
		CollectBoundaryPairs:         false,
	}
}

// BottleneckSize returns the last autoencoder shape, or false if propagation is disabled
func (c ModelConfig) BottleneckSize() (int, bool) {
	if len(c.AutoencoderShapes) == 0 {
		return 0, false
	}
	return c.AutoencoderShapes[len(c.AutoencoderShapes)-1], true
}

// QueryConfig represents configuration for a retrieval query
type QueryConfig struct {
	TopK                int     `json:"top_k"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`
	// Restrict results to one entity type, empty means all types
	EntityType string `json:"entity_type,omitempty"`
	// Relation filter for neighbour lookups, empty means all relations
	Relations      []string `json:"relations,omitempty"`
	FollowIncoming bool     `json:"follow_incoming"`
	// Traversal depth of graph based strategies
	MaxHops int `json:"max_hops"`
	// Score weights of the hybrid strategy
	VectorWeight float64 `json:"vector_weight"`
	GraphWeight  float64 `json:"graph_weight"`
}

// DefaultQueryConfig returns a sensible default configuration
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		TopK:                5,
		SimilarityThreshold: 0.0,
		EntityType:          "",
		Relations:           nil,
		FollowIncoming:      true,
		MaxHops:             2,
		VectorWeight:        0.7,
		GraphWeight:         0.3,
	}
}

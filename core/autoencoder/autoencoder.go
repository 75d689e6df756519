// Package autoencoder implements the graph autoencoder: per-field encoders,
// one entity autoencoder per type and depth, relation summarizers, projectors
// and per-field decoders, tied together by the forward pass.
package autoencoder

import (
	"fmt"
	"log/slog"

	"github.com/siherrmann/graphae/core/nn"
	"github.com/siherrmann/graphae/core/schema"
	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
)

// GraphAutoencoder owns every component in slices indexed by the schema's
// integer ids. It is immutable after construction and safe for concurrent
// forward passes.
type GraphAutoencoder struct {
	schema *schema.Schema
	config model.ModelConfig
	logger *slog.Logger

	act           nn.Activation
	bottleneck    int
	hasBottleneck bool
	projectedSize int

	// by entity type id
	boundarySizes []int
	autoencoders  [][]*nn.Autoencoder
	projectors    []*nn.Projector

	// by data field id
	fieldEncoders []nn.FieldEncoder
	fieldDecoders []nn.FieldDecoder
	fieldLosses   []nn.FieldLoss

	// by relation id, nil at depth 0
	sourceSummarizers []*nn.Summarizer
	targetSummarizers []*nn.Summarizer
}

// NewGraphAutoencoder builds every component from a frozen schema. Weights are
// drawn deterministically from config.Seed.
func NewGraphAutoencoder(s *schema.Schema, config model.ModelConfig, logger *slog.Logger) (*GraphAutoencoder, error) {
	if s == nil {
		return nil, helper.NewError("graph autoencoder", helper.ConfigurationError("schema is nil"))
	}
	if err := s.RequireFrozen("graph autoencoder"); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := validateConfig(&config); err != nil {
		return nil, helper.NewError("graph autoencoder", err)
	}

	act, err := nn.NewActivation(config.Activation)
	if err != nil {
		return nil, helper.NewError("graph autoencoder", err)
	}

	g := &GraphAutoencoder{
		schema: s,
		config: config,
		logger: logger,
		act:    act,
	}
	g.bottleneck, g.hasBottleneck = config.BottleneckSize()
	initializer := nn.NewInitializer(config.Seed)

	// An encoder for each field that turns its kind into a fixed-size representation
	g.fieldEncoders = make([]nn.FieldEncoder, len(s.DataFields))
	g.fieldDecoders = make([]nn.FieldDecoder, len(s.DataFields))
	g.fieldLosses = make([]nn.FieldLoss, len(s.DataFields))
	decoderFactories := make([]nn.DecoderFactory, len(s.DataFields))
	for id, codec := range s.DataFields {
		newEncoder, newDecoder, newLoss, err := nn.FieldModels(codec.Kind())
		if err != nil {
			return nil, helper.NewError("graph autoencoder", err)
		}
		if g.fieldEncoders[id], err = newEncoder(initializer, codec, act); err != nil {
			return nil, helper.NewError("graph autoencoder", err)
		}
		if g.fieldLosses[id], err = newLoss(codec); err != nil {
			return nil, helper.NewError("graph autoencoder", err)
		}
		decoderFactories[id] = newDecoder
	}

	// Boundary sizes and one autoencoder per entity type and depth
	g.boundarySizes = make([]int, len(s.EntityTypes))
	g.autoencoders = make([][]*nn.Autoencoder, len(s.EntityTypes))
	for _, et := range s.EntityTypes {
		boundary := config.BaseEntityRepresentationSize
		for _, f := range et.DataFields {
			boundary += g.fieldEncoders[f].OutputSize()
		}
		g.boundarySizes[et.ID] = boundary

		g.autoencoders[et.ID] = []*nn.Autoencoder{nn.NewAutoencoder(initializer, boundary, config.AutoencoderShapes, act)}
		relational := g.relationalBoundarySize(et)
		for d := 0; d < config.Depth; d++ {
			g.autoencoders[et.ID] = append(g.autoencoders[et.ID], nn.NewAutoencoder(initializer, relational, config.AutoencoderShapes, act))
		}
	}

	// A summarizer for each relation participant
	if config.Depth > 0 {
		g.sourceSummarizers = make([]*nn.Summarizer, len(s.Relations))
		g.targetSummarizers = make([]*nn.Summarizer, len(s.Relations))
		for _, r := range s.Relations {
			if g.sourceSummarizers[r.ID], err = nn.NewSummarizer(initializer, config.Summarizer, g.bottleneck, act); err != nil {
				return nil, helper.NewError("graph autoencoder", err)
			}
			if g.targetSummarizers[r.ID], err = nn.NewSummarizer(initializer, config.Summarizer, g.bottleneck, act); err != nil {
				return nil, helper.NewError("graph autoencoder", err)
			}
		}
	}

	// Projectors to a common size, defaulting to the largest depth-0 boundary
	g.projectedSize = config.ProjectedSize
	if g.projectedSize == 0 {
		for _, b := range g.boundarySizes {
			g.projectedSize = max(g.projectedSize, b)
		}
	}
	g.projectors = make([]*nn.Projector, len(s.EntityTypes))
	for _, et := range s.EntityTypes {
		in := g.boundarySizes[et.ID]
		if config.Depth > 0 {
			in = g.relationalBoundarySize(et)
		}
		g.projectors[et.ID] = nn.NewProjector(initializer, in, g.projectedSize, act)
	}

	// A decoder for each field from the projected representation
	for id, codec := range s.DataFields {
		if g.fieldDecoders[id], err = decoderFactories[id](initializer, codec, g.projectedSize, act); err != nil {
			return nil, helper.NewError("graph autoencoder", err)
		}
	}

	logger.Info("Initialized GraphAutoencoder",
		slog.Int("depth", config.Depth),
		slog.Int("projected_size", g.projectedSize),
		slog.Int("parameters", g.ParameterCount()),
	)

	return g, nil
}

func validateConfig(config *model.ModelConfig) error {
	if config.Device == "" {
		config.Device = model.DeviceCPU
	}
	if config.Device != model.DeviceCPU {
		return helper.ConfigurationError("unsupported device '%s'", config.Device)
	}
	if config.Depth < 0 {
		return helper.ConfigurationError("depth must not be negative, got %d", config.Depth)
	}
	for _, size := range config.AutoencoderShapes {
		if size <= 0 {
			return helper.ConfigurationError("autoencoder shapes must be positive, got %v", config.AutoencoderShapes)
		}
	}
	if _, ok := config.BottleneckSize(); !ok && config.Depth > 0 {
		return helper.ConfigurationError("depth %d requires autoencoder shapes to define a bottleneck width", config.Depth)
	}
	if config.BaseEntityRepresentationSize < 0 {
		return helper.ConfigurationError("base entity representation size must not be negative")
	}
	if config.ProjectedSize < 0 {
		return helper.ConfigurationError("projected size must not be negative")
	}
	return nil
}

// relationalBoundarySize adds one bottleneck block per outgoing relation and,
// in reverse mode, per incoming relation.
func (g *GraphAutoencoder) relationalBoundarySize(et *schema.EntityType) int {
	size := g.boundarySizes[et.ID] + g.bottleneck*len(et.OutgoingRelations)
	if g.config.ReverseRelations {
		size += g.bottleneck * len(et.IncomingRelations)
	}
	return size
}

// BoundarySize returns the autoencoder width of an entity type at a depth
func (g *GraphAutoencoder) BoundarySize(entityType string, depth int) (int, error) {
	et, ok := g.schema.EntityType(entityType)
	if !ok {
		return 0, helper.ShapeError("unknown entity type '%s'", entityType)
	}
	if depth == 0 {
		return g.boundarySizes[et.ID], nil
	}
	if !g.hasBottleneck {
		return 0, helper.ShapeError("depth %d requires a bottleneck", depth)
	}
	return g.relationalBoundarySize(et), nil
}

func (g *GraphAutoencoder) ProjectedSize() int { return g.projectedSize }

// BottleneckSize returns the bottleneck width, false if propagation is disabled
func (g *GraphAutoencoder) BottleneckSize() (int, bool) { return g.bottleneck, g.hasBottleneck }

func (g *GraphAutoencoder) Depth() int { return g.config.Depth }

func (g *GraphAutoencoder) Schema() *schema.Schema { return g.schema }

func (g *GraphAutoencoder) Config() model.ModelConfig { return g.config }

// ParameterCount is the number of weights across all components
func (g *GraphAutoencoder) ParameterCount() int {
	n := 0
	for i := range g.fieldEncoders {
		n += g.fieldEncoders[i].ParameterCount() + g.fieldDecoders[i].ParameterCount()
	}
	for _, stack := range g.autoencoders {
		for _, ae := range stack {
			n += ae.ParameterCount()
		}
	}
	for i := range g.sourceSummarizers {
		n += g.sourceSummarizers[i].ParameterCount() + g.targetSummarizers[i].ParameterCount()
	}
	for _, p := range g.projectors {
		n += p.ParameterCount()
	}
	return n
}

func (g *GraphAutoencoder) String() string {
	return fmt.Sprintf("GraphAutoencoder(depth=%d, bottleneck=%d, projected=%d)", g.config.Depth, g.bottleneck, g.projectedSize)
}

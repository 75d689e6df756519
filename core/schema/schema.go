// Package schema holds the validated description of entity types, data
// fields and relations, together with the learned state of every field codec.
package schema

import (
	"fmt"
	"log/slog"

	"github.com/siherrmann/graphae/core/field"
	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
)

// EntityType is a named category of node. Field and relation ids index the
// schema's DataFields and Relations slices.
type EntityType struct {
	ID                int
	Name              string
	DataFields        []int
	OutgoingRelations []int
	IncomingRelations []int
}

// Relation is a typed directed edge kind between two entity types
type Relation struct {
	ID     int
	Name   string
	Source int
	Target int
}

// Schema is immutable after New apart from the codec statistics, which may
// only change until Freeze is called.
type Schema struct {
	IDField         string
	EntityTypeField string
	EntityTypes     []*EntityType
	DataFields      []field.Codec
	Relations       []*Relation

	entityTypeIDs map[string]int
	dataFieldIDs  map[string]int
	relationIDs   map[string]int
	frozen        bool
	logger        *slog.Logger
}

// Option configures schema construction
type Option func(*options)

type options struct {
	embed  field.EmbedFunc
	logger *slog.Logger
}

// WithEmbedder supplies the sentence embedding used by text fields
func WithEmbedder(embed field.EmbedFunc) Option {
	return func(o *options) {
		o.embed = embed
	}
}

// WithLogger sets the logger used for observe pass diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New validates the config and builds the schema. Any unknown reference fails
// construction and no schema is returned.
func New(config *model.SchemaConfig, opts ...Option) (*Schema, error) {
	if config == nil {
		return nil, helper.NewError("schema", helper.ConfigurationError("schema config is nil"))
	}
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	s := &Schema{
		IDField:         config.IDField,
		EntityTypeField: config.EntityTypeField,
		entityTypeIDs:   map[string]int{},
		dataFieldIDs:    map[string]int{},
		relationIDs:     map[string]int{},
		logger:          o.logger,
	}
	if s.IDField == "" {
		s.IDField = "id"
	}
	if s.EntityTypeField == "" {
		s.EntityTypeField = "entity_type"
	}

	for _, fc := range config.DataFields {
		if !fc.Type.Valid() {
			return nil, helper.NewError("schema", helper.ConfigurationError("field '%s' has unsupported type '%s'", fc.Name, fc.Type))
		}
		if err := s.checkName(fc.Name, s.dataFieldIDs, "data field"); err != nil {
			return nil, err
		}
		codec, err := field.New(fc, o.embed)
		if err != nil {
			return nil, helper.NewError("schema", err)
		}
		s.dataFieldIDs[fc.Name] = len(s.DataFields)
		s.DataFields = append(s.DataFields, codec)
	}

	for _, tc := range config.EntityTypes {
		if err := s.checkName(tc.Name, s.entityTypeIDs, "entity type"); err != nil {
			return nil, err
		}
		et := &EntityType{ID: len(s.EntityTypes), Name: tc.Name}
		seen := map[int]bool{}
		for _, name := range tc.DataFields {
			id, ok := s.dataFieldIDs[name]
			if !ok {
				return nil, helper.NewError("schema", helper.ConfigurationError("entity type '%s' references unknown data field '%s'", tc.Name, name))
			}
			if seen[id] {
				return nil, helper.NewError("schema", helper.ConfigurationError("entity type '%s' lists data field '%s' twice", tc.Name, name))
			}
			seen[id] = true
			et.DataFields = append(et.DataFields, id)
		}
		s.entityTypeIDs[tc.Name] = et.ID
		s.EntityTypes = append(s.EntityTypes, et)
	}

	for _, rc := range config.RelationFields {
		if err := s.checkName(rc.Name, s.relationIDs, "relation"); err != nil {
			return nil, err
		}
		source, ok := s.entityTypeIDs[rc.SourceEntityType]
		if !ok {
			return nil, helper.NewError("schema", helper.ConfigurationError("relation '%s' references unknown source entity type '%s'", rc.Name, rc.SourceEntityType))
		}
		target, ok := s.entityTypeIDs[rc.TargetEntityType]
		if !ok {
			return nil, helper.NewError("schema", helper.ConfigurationError("relation '%s' references unknown target entity type '%s'", rc.Name, rc.TargetEntityType))
		}
		r := &Relation{ID: len(s.Relations), Name: rc.Name, Source: source, Target: target}
		s.relationIDs[rc.Name] = r.ID
		s.Relations = append(s.Relations, r)
		s.EntityTypes[source].OutgoingRelations = append(s.EntityTypes[source].OutgoingRelations, r.ID)
		s.EntityTypes[target].IncomingRelations = append(s.EntityTypes[target].IncomingRelations, r.ID)
	}

	return s, nil
}

func (s *Schema) checkName(name string, ids map[string]int, what string) error {
	if name == "" {
		return helper.NewError("schema", helper.ConfigurationError("%s without name", what))
	}
	if name == s.IDField || name == s.EntityTypeField {
		return helper.NewError("schema", helper.ConfigurationError("%s '%s' collides with a reserved column", what, name))
	}
	if _, ok := ids[name]; ok {
		return helper.NewError("schema", helper.ConfigurationError("%s '%s' declared twice", what, name))
	}
	return nil
}

// EntityType returns the entity type by name
func (s *Schema) EntityType(name string) (*EntityType, bool) {
	id, ok := s.entityTypeIDs[name]
	if !ok {
		return nil, false
	}
	return s.EntityTypes[id], true
}

// DataField returns the codec of a data field by name
func (s *Schema) DataField(name string) (field.Codec, bool) {
	id, ok := s.dataFieldIDs[name]
	if !ok {
		return nil, false
	}
	return s.DataFields[id], true
}

// Relation returns the relation by name
func (s *Schema) Relation(name string) (*Relation, bool) {
	id, ok := s.relationIDs[name]
	if !ok {
		return nil, false
	}
	return s.Relations[id], true
}

// Observe feeds one raw value into a field's statistics
func (s *Schema) Observe(fieldName string, raw any) error {
	if s.frozen {
		return helper.NewError("observe", helper.ConfigurationError("schema is frozen"))
	}
	codec, ok := s.DataField(fieldName)
	if !ok {
		return helper.NewError("observe", helper.ConfigurationError("unknown data field '%s'", fieldName))
	}
	return helper.NewError("observe", codec.Observe(raw))
}

// Encode encodes one raw value of a field. The schema must be frozen.
func (s *Schema) Encode(fieldName string, raw any) ([]float64, error) {
	if err := s.RequireFrozen("encode"); err != nil {
		return nil, err
	}
	codec, ok := s.DataField(fieldName)
	if !ok {
		return nil, helper.NewError("encode", helper.ConfigurationError("unknown data field '%s'", fieldName))
	}
	row, err := codec.Encode(raw)
	if err != nil {
		return nil, helper.NewError("encode", err)
	}
	return row, nil
}

// Freeze ends the observe pass. Encoded widths are fixed from here on.
func (s *Schema) Freeze() {
	if s.frozen {
		return
	}
	for _, codec := range s.DataFields {
		codec.Freeze()
		s.logger.Debug("Froze field", slog.String("field", codec.Name()), slog.Int("width", codec.Width()))
	}
	s.frozen = true
}

func (s *Schema) Frozen() bool {
	return s.frozen
}

// RequireFrozen is the guard for encoding and forward computation
func (s *Schema) RequireFrozen(op string) error {
	if !s.frozen {
		return helper.NewError(op, helper.ConfigurationError("schema must be frozen before encoding"))
	}
	return nil
}

func (s *Schema) String() string {
	return fmt.Sprintf("schema[%d entity types, %d data fields, %d relations]", len(s.EntityTypes), len(s.DataFields), len(s.Relations))
}

package model

import (
	"fmt"
	"os"

	"github.com/siherrmann/graphae/helper"
	"gopkg.in/yaml.v3"
)

// FieldKind is the closed set of data field kinds
type FieldKind string

const (
	FieldKindNumeric      FieldKind = "numeric"
	FieldKindInteger      FieldKind = "integer"
	FieldKindDate         FieldKind = "date"
	FieldKindCategorical  FieldKind = "categorical"
	FieldKindDistribution FieldKind = "distribution"
	FieldKindSequential   FieldKind = "sequential"
	FieldKindCharacter    FieldKind = "character"
	FieldKindText         FieldKind = "text"
)

// FieldKinds lists every supported kind in a stable order
var FieldKinds = []FieldKind{
	FieldKindNumeric,
	FieldKindInteger,
	FieldKindDate,
	FieldKindCategorical,
	FieldKindDistribution,
	FieldKindSequential,
	FieldKindCharacter,
	FieldKindText,
}

// Valid reports whether k is one of the supported kinds
func (k FieldKind) Valid() bool {
	for _, kind := range FieldKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// SchemaConfig is the declarative description a schema is built from
type SchemaConfig struct {
	IDField         string                `json:"id_field" yaml:"id_field"`
	EntityTypeField string                `json:"entity_type_field" yaml:"entity_type_field"`
	DataFields      []DataFieldConfig     `json:"data_fields" yaml:"data_fields"`
	RelationFields  []RelationFieldConfig `json:"relation_fields" yaml:"relation_fields"`
	EntityTypes     []EntityTypeConfig    `json:"entity_types" yaml:"entity_types"`
}

type DataFieldConfig struct {
	Name string    `json:"name" yaml:"name"`
	Type FieldKind `json:"type" yaml:"type"`
}

type RelationFieldConfig struct {
	Name             string `json:"name" yaml:"name"`
	SourceEntityType string `json:"source_entity_type" yaml:"source_entity_type"`
	TargetEntityType string `json:"target_entity_type" yaml:"target_entity_type"`
}

// EntityTypeConfig lists the data fields a type may carry. Relations are
// attached to types through their source and target declarations.
type EntityTypeConfig struct {
	Name       string   `json:"name" yaml:"name"`
	DataFields []string `json:"data_fields" yaml:"data_fields"`
}

// ParseSchemaConfig decodes a YAML (or JSON) schema description
func ParseSchemaConfig(data []byte) (*SchemaConfig, error) {
	config := &SchemaConfig{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, helper.NewError("parse schema config", fmt.Errorf("%w: %v", helper.ErrConfiguration, err))
	}
	if config.IDField == "" {
		config.IDField = "id"
	}
	if config.EntityTypeField == "" {
		config.EntityTypeField = "entity_type"
	}
	return config, nil
}

// LoadSchemaConfig reads and parses a schema description file
func LoadSchemaConfig(path string) (*SchemaConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, helper.NewError("read schema config", err)
	}
	return ParseSchemaConfig(data)
}

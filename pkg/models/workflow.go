// Package models defines the core domain models for node-based workflow automation.
package models

import "time"

// InputMappingType describes how a node input gets its value at execution time.
type InputMappingType string

const (
	// InputMappingConstant is a literal value configured in the builder.
	// String constants pass through template substitution before use.
	InputMappingConstant InputMappingType = "constant"
	// InputMappingVariable references another step's output as "stepId.outputKey".
	InputMappingVariable InputMappingType = "variable"
	// InputMappingContext references a fixed workspace context key.
	InputMappingContext InputMappingType = "context"
)

// Context keys usable by InputMappingContext mappings.
const (
	ContextKeyWorkingDir  = "workingDir"
	ContextKeyWorkspaceID = "workspaceId"
)

// InputMapping binds one declared action parameter to its value source.
type InputMapping struct {
	Type  InputMappingType `json:"type"  validate:"required,oneof=constant variable context"`
	Value any              `json:"value"`
}

// WorkflowNode is one configured action instance in a workflow graph.
type WorkflowNode struct {
	ID            string                  `json:"id"             validate:"required"`
	ActionType    string                  `json:"action_type"    validate:"required"`
	Name          string                  `json:"name"           validate:"required,min=1"`
	InputMappings map[string]InputMapping `json:"input_mappings"`
	PositionX     int                     `json:"position_x"`
	PositionY     int                     `json:"position_y"`
}

// Edge is a directed dependency between two nodes. The target becomes ready
// only after the source succeeds.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// WorkflowInputType enumerates the types a run-level input can declare.
type WorkflowInputType string

const (
	WorkflowInputText    WorkflowInputType = "text"
	WorkflowInputNumber  WorkflowInputType = "number"
	WorkflowInputBoolean WorkflowInputType = "boolean"
	WorkflowInputImage   WorkflowInputType = "image"
)

// WorkflowInput declares a named, typed input supplied at run launch time.
// Templates read it via "input.<name>".
type WorkflowInput struct {
	Name         string            `json:"name"  validate:"required"`
	Label        string            `json:"label,omitempty"`
	Type         WorkflowInputType `json:"type"  validate:"required,oneof=text number boolean image"`
	DefaultValue any               `json:"default_value,omitempty"`
}

// Workflow is the immutable-between-edits graph definition. The engine treats
// it as read-only; only the builder mutates it.
type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Nodes       []*WorkflowNode `json:"nodes"`
	Edges       []*Edge         `json:"edges"`
	Inputs      []WorkflowInput `json:"inputs,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NodeByID returns the node with the given ID, or nil.
func (w *Workflow) NodeByID(id string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// EdgesByTarget groups the workflow's edges by their target node ID.
func (w *Workflow) EdgesByTarget() map[string][]*Edge {
	byTarget := make(map[string][]*Edge, len(w.Nodes))
	for _, edge := range w.Edges {
		byTarget[edge.Target] = append(byTarget[edge.Target], edge)
	}

	return byTarget
}

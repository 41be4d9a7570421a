// Package graph holds the clinical knowledge graph document, the validating
// parse applied to loosely shaped model output, and the served {nodes, edges}
// view derived from a document.
package graph

// Node is one extracted clinical entity. Tags carries the category the model
// assigned ("diagnosis", "lab", "medication", ...).
type Node struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tags  string `json:"tags"`
}

// Link relates two nodes by title. Value is a confidence in [0,1] and is nil
// when the model gave nothing usable.
type Link struct {
	Source      string   `json:"source"`
	SourceType  string   `json:"source_type"`
	Target      string   `json:"target"`
	TargetType  string   `json:"target_type"`
	Description string   `json:"description"`
	Value       *float64 `json:"value,omitempty"`
}

// Document is the persisted snapshot. It is always read and written whole.
type Document struct {
	Nodes []Node `json:"Nodes"`
	Links []Link `json:"Links"`
}

type NodeType string

const (
	TypeCondition   NodeType = "Condition"
	TypeLabTest     NodeType = "LabTest"
	TypeDrug        NodeType = "Drug"
	TypeGuideline   NodeType = "Guideline"
	TypePatient     NodeType = "Patient"
	TypeAppointment NodeType = "Appointment"
)

type EdgeType string

const (
	EdgeHasLab         EdgeType = "has_lab"
	EdgePrescribed     EdgeType = "prescribed"
	EdgeInteractsWith  EdgeType = "interacts_with"
	EdgeHasAppointment EdgeType = "has_appointment"
	EdgeGuideline      EdgeType = "guideline"
)

// ServedNode is a node as the graph view exposes it. Body is a pointer so a
// known node with an empty body still reports "body": "" while synthesized
// stubs omit it.
type ServedNode struct {
	ID    string   `json:"id"`
	Type  NodeType `json:"type"`
	Label string   `json:"label"`
	Body  *string  `json:"body,omitempty"`
	Tags  string   `json:"tags,omitempty"`
}

type Edge struct {
	ID          string   `json:"id"`
	Source      string   `json:"source"`
	Target      string   `json:"target"`
	Type        EdgeType `json:"type"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description,omitempty"`
}

type View struct {
	Nodes []ServedNode `json:"nodes"`
	Edges []Edge       `json:"edges"`
}

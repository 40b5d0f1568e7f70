package domain

// OperationKind is the action reconciliation decided for one resource.
type OperationKind string

// Operation kinds.
const (
	OpCreate OperationKind = "create"
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
	OpNoOp   OperationKind = "noop"
)

// ResourcePayload is a built resource node plus the local file that must
// be attached after the node is written. UploadPath is empty for linked
// resources.
type ResourcePayload struct {
	Document   Document
	UploadPath string
}

// Operation is one step of a reconciliation plan.
type Operation struct {
	Kind OperationKind

	// Ref is the existing resource node id; empty for OpCreate.
	Ref string

	// Resource is the desired row; nil for OpDelete.
	Resource *Resource

	// Payload is the document to write; nil for OpDelete and OpNoOp.
	Payload *ResourcePayload

	// Previous is the fetched remote node; nil for OpCreate.
	Previous Document

	// Reasons lists what differs, for OpUpdate.
	Reasons []string
}

// Title returns a display title for the operation.
func (o Operation) Title() string {
	if o.Payload != nil {
		if t := o.Payload.Document.String(Path{Key("title")}); t != "" {
			return t
		}
	}
	if o.Resource != nil {
		return o.Resource.Name()
	}
	return o.Previous.String(Path{Key("title")})
}

// DatasetAction is what happened, or would happen, to a dataset row.
type DatasetAction string

// Dataset actions.
const (
	DatasetCreate DatasetAction = "create"
	DatasetUpdate DatasetAction = "update"
	DatasetSkip   DatasetAction = "skip"
	DatasetFailed DatasetAction = "failed"
)

// PlanEntry summarises the work done for one dataset row.
type PlanEntry struct {
	Row        int             `yaml:"row" json:"row"`
	Title      string          `yaml:"title" json:"title"`
	NodeID     string          `yaml:"node_id,omitempty" json:"node_id,omitempty"`
	Action     DatasetAction   `yaml:"action" json:"action"`
	Message    string          `yaml:"message,omitempty" json:"message,omitempty"`
	Operations []PlanOperation `yaml:"resources,omitempty" json:"resources,omitempty"`
	Warnings   []string        `yaml:"warnings,omitempty" json:"warnings,omitempty"`
}

// PlanOperation is the serialisable view of an Operation.
type PlanOperation struct {
	Kind    OperationKind `yaml:"kind" json:"kind"`
	Ref     string        `yaml:"ref,omitempty" json:"ref,omitempty"`
	Title   string        `yaml:"title" json:"title"`
	Link    string        `yaml:"link,omitempty" json:"link,omitempty"`
	Upload  string        `yaml:"upload,omitempty" json:"upload,omitempty"`
	Reasons []string      `yaml:"reasons,omitempty" json:"reasons,omitempty"`
}

// Summarise converts an operation to its serialisable view.
func (o Operation) Summarise() PlanOperation {
	p := PlanOperation{Kind: o.Kind, Ref: o.Ref, Title: o.Title(), Reasons: o.Reasons}
	switch {
	case o.Resource != nil:
		p.Link = o.Resource.URL()
	case o.Previous != nil:
		p.Link, _ = ExtractLink(o.Previous)
	}
	if o.Payload != nil {
		p.Upload = o.Payload.UploadPath
	}
	return p
}

package model

import "fmt"

// NodeKind enumerates the node types of a model tree
type NodeKind int

const (
	ModelNode NodeKind = iota
	SchemaNode
	TableNode
	ColumnNode
	KeyNode
	ForeignKeyNode
)

func (k NodeKind) String() string {
	switch k {
	case ModelNode:
		return "catalog"
	case SchemaNode:
		return "schema"
	case TableNode:
		return "table"
	case ColumnNode:
		return "column"
	case KeyNode:
		return "key"
	case ForeignKeyNode:
		return "foreign key"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// Node is implemented by the node types of this package only
type Node interface {
	NodeKind() NodeKind
	Path() string
	node()
}

// DisplayName returns a human readable qualified name for n
func DisplayName(n Node) string {
	switch v := n.(type) {
	case *Model:
		return "catalog"
	case *Schema:
		return v.name
	case *Table:
		return v.schema.name + "." + v.name
	case *Column:
		return v.table.schema.name + "." + v.table.name + "." + v.name
	case *Key:
		return v.table.schema.name + "." + v.table.name + " key " + v.constraint.String()
	case *ForeignKey:
		return v.table.schema.name + "." + v.table.name + " foreign key " + v.constraint.String()
	default:
		panic(fmt.Sprintf("model: unknown node type %T", n))
	}
}

// DropOptions controls a drop operation
type DropOptions struct {
	// Cascade drops dependent elements first
	Cascade bool
	// UpdateMappings prunes annotation references to the dropped element
	UpdateMappings UpdateMappings
}

// ClearOptions selects the configuration a Clear resets
type ClearOptions struct {
	Comment     bool
	Annotations bool
	ACLs        bool
	ACLBindings bool
}

// DefaultClearOptions clears everything except comments
func DefaultClearOptions() ClearOptions {
	return ClearOptions{Annotations: true, ACLs: true, ACLBindings: true}
}

// Clear resets the catalog configuration and that of every node below it
func (m *Model) Clear(opts ClearOptions) {
	if opts.Annotations {
		m.Annotations = map[string]any{}
	}
	if opts.ACLs {
		m.ACLs = map[string]any{}
	}
	for _, s := range m.schemas.items {
		s.Clear(opts)
	}
}

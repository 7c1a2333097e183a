package model

// ModelDoc is the catalog model document served at /schema
type ModelDoc struct {
	ACLs        map[string]any        `json:"acls"`
	Annotations map[string]any        `json:"annotations"`
	Schemas     map[string]*SchemaDoc `json:"schemas"`
}

// SchemaDoc describes one schema
type SchemaDoc struct {
	SchemaName  string               `json:"schema_name"`
	ACLs        map[string]any       `json:"acls"`
	Annotations map[string]any       `json:"annotations"`
	Comment     *string              `json:"comment"`
	Tables      map[string]*TableDoc `json:"tables"`
}

// TableDoc describes one table
type TableDoc struct {
	SchemaName        string           `json:"schema_name,omitempty"`
	TableName         string           `json:"table_name"`
	Kind              string           `json:"kind,omitempty"`
	ACLs              map[string]any   `json:"acls"`
	ACLBindings       map[string]any   `json:"acl_bindings"`
	Annotations       map[string]any   `json:"annotations"`
	Comment           *string          `json:"comment"`
	ColumnDefinitions []*ColumnDoc     `json:"column_definitions"`
	Keys              []*KeyDoc        `json:"keys"`
	ForeignKeys       []*ForeignKeyDoc `json:"foreign_keys"`
}

// ColumnDoc describes one column
type ColumnDoc struct {
	Name        string         `json:"name"`
	Type        *TypeDoc       `json:"type"`
	NullOK      *bool          `json:"nullok"`
	Default     any            `json:"default"`
	Comment     *string        `json:"comment"`
	ACLs        map[string]any `json:"acls"`
	ACLBindings map[string]any `json:"acl_bindings"`
	Annotations map[string]any `json:"annotations"`
}

// TypeDoc describes a column type
type TypeDoc struct {
	TypeName string   `json:"typename"`
	IsDomain bool     `json:"is_domain,omitempty"`
	IsArray  bool     `json:"is_array,omitempty"`
	BaseType *TypeDoc `json:"base_type,omitempty"`
}

// KeyDoc describes a unique key
type KeyDoc struct {
	UniqueColumns []string       `json:"unique_columns"`
	Names         [][]string     `json:"names"`
	Comment       *string        `json:"comment"`
	Annotations   map[string]any `json:"annotations"`
}

// ForeignKeyDoc describes a foreign key reference
type ForeignKeyDoc struct {
	ForeignKeyColumns []ColumnRef    `json:"foreign_key_columns"`
	ReferencedColumns []ColumnRef    `json:"referenced_columns"`
	Names             [][]string     `json:"names"`
	OnUpdate          *string        `json:"on_update"`
	OnDelete          *string        `json:"on_delete"`
	Comment           *string        `json:"comment"`
	ACLs              map[string]any `json:"acls"`
	ACLBindings       map[string]any `json:"acl_bindings"`
	Annotations       map[string]any `json:"annotations"`
}

// ColumnRef addresses a column by schema, table and column name
type ColumnRef struct {
	SchemaName string `json:"schema_name,omitempty"`
	TableName  string `json:"table_name,omitempty"`
	ColumnName string `json:"column_name"`
}

// ConstraintNames builds the names field for a constraint declared in the
// schema of its table. The catalog substitutes the table's schema name.
func ConstraintNames(name string) [][]string {
	return [][]string{{"placeholder", name}}
}

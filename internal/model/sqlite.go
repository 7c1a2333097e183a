package model

import "strings"

// SQLiteName returns the name used for this table in SQLite exports
func (t *Table) SQLiteName() string {
	return t.schema.name + ":" + t.name
}

// SQLiteDDL returns a CREATE TABLE statement for this table. With keys, each
// table key becomes a unique constraint. Defaults and foreign keys are not
// emitted.
func (t *Table) SQLiteDDL(keys bool) string {
	parts := make([]string, 0, t.columns.Len()+t.keys.Len())
	for _, c := range t.columns.items {
		parts = append(parts, c.SQLiteDDL())
	}
	if keys {
		for _, k := range t.keys.items {
			parts = append(parts, k.SQLiteDDL())
		}
	}
	return "CREATE TABLE IF NOT EXISTS " + SQLIdentifier(t.SQLiteName()) + " (\n  " +
		strings.Join(parts, ",\n  ") + "\n);\n"
}

// SQLiteDDL returns the column definition fragment for this column
func (c *Column) SQLiteDDL() string {
	parts := []string{SQLIdentifier(c.name), c.Type.SQLiteType()}
	if !c.NullOK {
		parts = append(parts, "NOT NULL")
	}
	return strings.Join(parts, " ")
}

package model

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var errUnresolved = errors.New("unresolved reference")

// resolveAll binds every pending foreign key to its referenced table and
// columns. Foreign keys that cannot be bound are removed from their table
// and recorded in the unresolved list. Resolved foreign keys are skipped, so
// repeated calls are harmless.
func (m *Model) resolveAll() {
	for _, s := range m.schemas.items {
		for _, t := range s.tables.items {
			for _, fk := range t.foreignKeys.Items() {
				if fk.pkTable != nil {
					continue
				}
				err := fk.resolve(m)
				if err == nil {
					continue
				}

				t.foreignKeys.Remove(fk.constraint)
				m.unregisterForeignKey(fk)
				ref := UnresolvedReference{
					Schema:     s.name,
					Table:      t.name,
					Names:      constraintNamesDoc(fk.constraint, fk.synthetic),
					Referenced: append([]ColumnRef(nil), fk.rawReferenced...),
					Reason:     err.Error(),
				}
				m.unresolved = append(m.unresolved, ref)
				m.logger.Warn("dropping unresolved foreign key",
					zap.String("schema", s.name),
					zap.String("table", t.name),
					zap.String("constraint", fk.constraint.Name),
					zap.Error(err),
				)
			}
		}
	}
}

// resolve binds the raw referenced columns to nodes of m
func (fk *ForeignKey) resolve(m *Model) error {
	if fk.pkTable != nil {
		return nil
	}
	refs := fk.rawReferenced
	if len(refs) == 0 {
		return fmt.Errorf("%w: no referenced columns", errUnresolved)
	}
	if len(refs) != len(fk.columns) {
		return fmt.Errorf("%w: %d referencing columns but %d referenced columns",
			errUnresolved, len(fk.columns), len(refs))
	}

	s, ok := m.schemas.Get(refs[0].SchemaName)
	if !ok {
		return fmt.Errorf("%w: schema %s does not exist", errUnresolved, refs[0].SchemaName)
	}
	pk, ok := s.tables.Get(refs[0].TableName)
	if !ok {
		return fmt.Errorf("%w: table %s.%s does not exist", errUnresolved, refs[0].SchemaName, refs[0].TableName)
	}
	cols := make([]*Column, 0, len(refs))
	for _, ref := range refs {
		if ref.SchemaName != refs[0].SchemaName || ref.TableName != refs[0].TableName {
			return fmt.Errorf("%w: referenced columns span several tables", errUnresolved)
		}
		c, ok := pk.columns.Get(ref.ColumnName)
		if !ok {
			return fmt.Errorf("%w: column %s.%s.%s does not exist",
				errUnresolved, ref.SchemaName, ref.TableName, ref.ColumnName)
		}
		cols = append(cols, c)
	}

	fk.pkTable = pk
	fk.referenced = cols
	fk.rawReferenced = nil
	for _, r := range pk.referencedBy {
		if r == fk {
			return nil
		}
	}
	pk.referencedBy = append(pk.referencedBy, fk)
	return nil
}

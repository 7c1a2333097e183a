package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/tordrt/catalogmodel/internal/model"
)

// DefaultSQLiteSchema holds SQLite tables whose names carry no schema prefix
const DefaultSQLiteSchema = "main"

// SQLiteExtractor handles model extraction from SQLite. A table named
// schema:table, as written by Export, lands in that schema.
type SQLiteExtractor struct {
	client *SQLiteClient
}

// NewSQLiteExtractor creates a new SQLite model extractor
func NewSQLiteExtractor(client *SQLiteClient) *SQLiteExtractor {
	return &SQLiteExtractor{
		client: client,
	}
}

// ExtractModel extracts the complete model for specified tables.
// If tables is empty, extracts all tables in the database.
func (e *SQLiteExtractor) ExtractModel(ctx context.Context, tables []string) (*model.ModelDoc, error) {
	doc := newModelDoc()

	infos, err := e.getTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	if infos, err = filterTables(infos, tables); err != nil {
		return nil, err
	}

	for _, info := range infos {
		table, err := e.extractTable(ctx, info)
		if err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", info.source, err)
		}
		addTable(doc, table)
	}

	return doc, nil
}

// splitTableName separates the schema prefix of an exported table name
func splitTableName(source string) (string, string) {
	if schemaName, tableName, ok := strings.Cut(source, ":"); ok {
		return schemaName, tableName
	}
	return DefaultSQLiteSchema, source
}

// getTables returns the user tables of the database
func (e *SQLiteExtractor) getTables(ctx context.Context) ([]tableInfo, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []tableInfo
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, err
		}
		schemaName, tableName := splitTableName(source)
		tables = append(tables, tableInfo{schema: schemaName, name: tableName, source: source})
	}

	return tables, rows.Err()
}

// extractTable extracts all information for a single table
func (e *SQLiteExtractor) extractTable(ctx context.Context, info tableInfo) (*model.TableDoc, error) {
	table := newTableDoc(info)

	columns, pk, err := e.extractColumns(ctx, info.source)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	table.ColumnDefinitions = columns

	if len(pk) > 0 {
		table.Keys = append(table.Keys, newKeyDoc(info.schema, model.MakeID(info.name, "pkey"), pk, nil))
	}

	keys, err := e.extractUniqueKeys(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("failed to extract keys: %w", err)
	}
	table.Keys = append(table.Keys, keys...)

	fkeys, err := e.extractForeignKeys(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	for _, fk := range fkeys {
		table.ForeignKeys = append(table.ForeignKeys, newForeignKeyDoc(table, fk))
	}

	return table, nil
}

// extractColumns extracts column information and the primary key columns
func (e *SQLiteExtractor) extractColumns(ctx context.Context, source string) ([]*model.ColumnDoc, []string, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", model.SQLIdentifier(source))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []*model.ColumnDoc
	pkOrder := map[string]int{}
	var pk []string

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pkIndex int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pkIndex); err != nil {
			return nil, nil, err
		}

		var def any
		if defaultValue.Valid {
			def = parseDefault(defaultValue.String)
		}
		columns = append(columns, newColumnDoc(name, sqliteTypeDoc(colType), notNull == 0, def, nil))

		if pkIndex > 0 {
			pkOrder[name] = pkIndex
			pk = append(pk, name)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	sort.SliceStable(pk, func(i, j int) bool { return pkOrder[pk[i]] < pkOrder[pk[j]] })
	return columns, pk, nil
}

// primaryKey returns the primary key columns of a table
func (e *SQLiteExtractor) primaryKey(ctx context.Context, source string) ([]string, error) {
	_, pk, err := e.extractColumns(ctx, source)
	return pk, err
}

// extractUniqueKeys extracts unique indexes other than the primary key.
// Indexes created by a UNIQUE table constraint are named like catalog
// keys, table_columns_key.
func (e *SQLiteExtractor) extractUniqueKeys(ctx context.Context, info tableInfo) ([]*model.KeyDoc, error) {
	query := fmt.Sprintf("PRAGMA index_list(%s)", model.SQLIdentifier(info.source))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	type index struct {
		name   string
		origin string
	}
	var indexes []index
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string

		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if unique == 1 && origin != "pk" && partial == 0 {
			indexes = append(indexes, index{name: name, origin: origin})
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	var keys []*model.KeyDoc
	for _, idx := range indexes {
		columns, err := e.indexColumns(ctx, idx.name)
		if err != nil {
			return nil, err
		}
		if len(columns) == 0 {
			continue
		}
		name := idx.name
		if idx.origin == "u" {
			name = model.MakeID(append(append([]string{info.name}, columns...), "key")...)
		}
		keys = append(keys, newKeyDoc(info.schema, name, columns, nil))
	}

	sort.SliceStable(keys, func(i, j int) bool { return keys[i].Names[0][1] < keys[j].Names[0][1] })
	return keys, nil
}

// indexColumns returns the columns of an index in index order
func (e *SQLiteExtractor) indexColumns(ctx context.Context, indexName string) ([]string, error) {
	query := fmt.Sprintf("PRAGMA index_info(%s)", model.SQLIdentifier(indexName))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []string
	for rows.Next() {
		var seqno, cid int
		var colName sql.NullString

		if err := rows.Scan(&seqno, &cid, &colName); err != nil {
			return nil, err
		}
		// expression index columns have no name
		if !colName.Valid {
			return nil, nil
		}
		columns = append(columns, colName.String)
	}

	return columns, rows.Err()
}

// extractForeignKeys extracts foreign key constraints. SQLite does not name
// them, so names follow the table_columns_fkey convention.
func (e *SQLiteExtractor) extractForeignKeys(ctx context.Context, info tableInfo) ([]foreignKeyInfo, error) {
	query := fmt.Sprintf("PRAGMA foreign_key_list(%s)", model.SQLIdentifier(info.source))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	var order []int
	byID := map[int]*foreignKeyInfo{}
	missingRefs := map[int]bool{}
	for rows.Next() {
		var id, seq int
		var target, fromCol, onUpdate, onDelete, match string
		var toCol sql.NullString

		if err := rows.Scan(&id, &seq, &target, &fromCol, &toCol, &onUpdate, &onDelete, &match); err != nil {
			_ = rows.Close()
			return nil, err
		}

		fk, ok := byID[id]
		if !ok {
			pkSchema, pkTable := splitTableName(target)
			fk = &foreignKeyInfo{pkSchema: pkSchema, pkTable: pkTable, onUpdate: onUpdate, onDelete: onDelete}
			byID[id] = fk
			order = append(order, id)
		}
		fk.columns = append(fk.columns, fromCol)
		if toCol.Valid {
			fk.refs = append(fk.refs, toCol.String)
		} else {
			missingRefs[id] = true
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	fkeys := make([]foreignKeyInfo, 0, len(order))
	for _, id := range order {
		fk := byID[id]
		if missingRefs[id] {
			target := fk.pkTable
			if fk.pkSchema != DefaultSQLiteSchema {
				target = fk.pkSchema + ":" + fk.pkTable
			}
			refs, err := e.primaryKey(ctx, target)
			if err != nil {
				return nil, fmt.Errorf("failed to read primary key of %s: %w", target, err)
			}
			if len(refs) != len(fk.columns) {
				return nil, fmt.Errorf("foreign key on %s does not match primary key of %s", strings.Join(fk.columns, ", "), target)
			}
			fk.refs = refs
		}
		fk.name = model.MakeID(append(append([]string{info.name}, fk.columns...), "fkey")...)
		fkeys = append(fkeys, *fk)
	}

	sort.SliceStable(fkeys, func(i, j int) bool { return fkeys[i].name < fkeys[j].name })
	return fkeys, nil
}

var sqliteTypes = map[string]string{
	"BOOLEAN":  "boolean",
	"DATE":     "date",
	"DATETIME": "timestamptz",
	"INTEGER":  "int8",
	"JSON":     "json",
	"REAL":     "float8",
	"TEXT":     "text",
}

// sqliteTypeDoc maps a declared SQLite column type onto a catalog type using
// the exported type names first and SQLite affinity rules otherwise
func sqliteTypeDoc(declared string) *model.TypeDoc {
	upper := strings.ToUpper(strings.TrimSpace(declared))
	if name, ok := sqliteTypes[upper]; ok {
		return typeDoc(name)
	}
	switch {
	case strings.Contains(upper, "BOOL"):
		return typeDoc("boolean")
	case strings.Contains(upper, "INT"):
		return typeDoc("int8")
	case strings.Contains(upper, "REAL"), strings.Contains(upper, "FLOA"), strings.Contains(upper, "DOUB"),
		strings.Contains(upper, "NUMERIC"), strings.Contains(upper, "DECIMAL"):
		return typeDoc("float8")
	case strings.Contains(upper, "TIMESTAMP"):
		return typeDoc("timestamptz")
	}
	return typeDoc("text")
}

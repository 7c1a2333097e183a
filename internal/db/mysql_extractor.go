package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/tordrt/catalogmodel/internal/model"
)

// MySQLExtractor handles model extraction from MySQL. The database becomes
// a single catalog schema of the same name.
type MySQLExtractor struct {
	client     *MySQLClient
	schemaName string
}

// NewMySQLExtractor creates a new MySQL model extractor
func NewMySQLExtractor(client *MySQLClient, schemaName string) *MySQLExtractor {
	return &MySQLExtractor{
		client:     client,
		schemaName: schemaName,
	}
}

// ExtractModel extracts the complete model for specified tables.
// If tables is empty, extracts all tables in the database.
func (e *MySQLExtractor) ExtractModel(ctx context.Context, tables []string) (*model.ModelDoc, error) {
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
			return nil, fmt.Errorf("failed to extract table %s: %w", info.name, err)
		}
		addTable(doc, table)
	}

	return doc, nil
}

// getTables returns the base tables of the database
func (e *MySQLExtractor) getTables(ctx context.Context) ([]tableInfo, error) {
	query := `
		SELECT table_name, table_comment
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []tableInfo
	for rows.Next() {
		var name, comment string
		if err := rows.Scan(&name, &comment); err != nil {
			return nil, err
		}
		tables = append(tables, tableInfo{schema: e.schemaName, name: name, comment: optionalString(comment)})
	}

	return tables, rows.Err()
}

// extractTable extracts all information for a single table
func (e *MySQLExtractor) extractTable(ctx context.Context, info tableInfo) (*model.TableDoc, error) {
	table := newTableDoc(info)

	columns, err := e.extractColumns(ctx, info.name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	table.ColumnDefinitions = columns

	keys, err := e.extractKeys(ctx, info.name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract keys: %w", err)
	}
	table.Keys = keys

	fkeys, err := e.extractForeignKeys(ctx, info.name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	for _, fk := range fkeys {
		table.ForeignKeys = append(table.ForeignKeys, newForeignKeyDoc(table, fk))
	}

	return table, nil
}

// extractColumns extracts column information for a table
func (e *MySQLExtractor) extractColumns(ctx context.Context, tableName string) ([]*model.ColumnDoc, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.column_type,
			c.is_nullable,
			c.column_default,
			c.extra,
			c.column_comment
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []*model.ColumnDoc
	for rows.Next() {
		var name, dataType, columnType, nullable, extra, comment string
		var defaultVal sql.NullString

		if err := rows.Scan(&name, &dataType, &columnType, &nullable, &defaultVal, &extra, &comment); err != nil {
			return nil, err
		}

		typ := mysqlTypeDoc(dataType, columnType)
		if strings.Contains(extra, "auto_increment") {
			if serial, ok := serialTypes[typ.TypeName]; ok {
				typ = typeDoc(serial)
			}
		}

		var def any
		if defaultVal.Valid && !strings.Contains(extra, "DEFAULT_GENERATED") {
			def = mysqlDefault(typ.TypeName, defaultVal.String)
		}

		if comment == "" && dataType == "enum" {
			values, err := extractEnumValues(columnType)
			if err != nil {
				return nil, err
			}
			comment = "one of: " + strings.Join(values, ", ")
		}

		columns = append(columns, newColumnDoc(name, typ, nullable == "YES", def, optionalString(comment)))
	}

	return columns, rows.Err()
}

// extractEnumValues parses enum values from the column type string
// MySQL stores enum types as "enum('value1','value2','value3')"
func extractEnumValues(columnType string) ([]string, error) {
	start := strings.Index(columnType, "(")
	end := strings.LastIndex(columnType, ")")
	if start == -1 || end == -1 || start >= end {
		return nil, fmt.Errorf("invalid enum type format: %s", columnType)
	}

	var values []string
	for _, part := range strings.Split(columnType[start+1:end], ",") {
		part = strings.TrimSpace(part)
		if len(part) >= 2 && part[0] == '\'' && part[len(part)-1] == '\'' {
			part = part[1 : len(part)-1]
		}
		values = append(values, part)
	}

	return values, nil
}

// extractKeys extracts primary key and unique constraints. The primary key
// is named after the table since MySQL always calls it PRIMARY.
func (e *MySQLExtractor) extractKeys(ctx context.Context, tableName string) ([]*model.KeyDoc, error) {
	query := `
		SELECT tc.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_schema = kcu.constraint_schema
			AND tc.constraint_name = kcu.constraint_name
			AND tc.table_name = kcu.table_name
		WHERE tc.table_schema = ?
			AND tc.table_name = ?
			AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	keys := []*model.KeyDoc{}
	var current *model.KeyDoc
	var currentName string
	for rows.Next() {
		var name, column string
		if err := rows.Scan(&name, &column); err != nil {
			return nil, err
		}
		if current == nil || name != currentName {
			keyName := name
			if name == "PRIMARY" {
				keyName = model.MakeID(tableName, "pkey")
			}
			current = newKeyDoc(e.schemaName, keyName, nil, nil)
			currentName = name
			keys = append(keys, current)
		}
		current.UniqueColumns = append(current.UniqueColumns, column)
	}

	return keys, rows.Err()
}

// extractForeignKeys extracts foreign key constraints
func (e *MySQLExtractor) extractForeignKeys(ctx context.Context, tableName string) ([]foreignKeyInfo, error) {
	query := `
		SELECT
			kcu.constraint_name,
			kcu.column_name,
			kcu.referenced_table_schema,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.update_rule,
			rc.delete_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = kcu.constraint_schema
			AND rc.constraint_name = kcu.constraint_name
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var fkeys []foreignKeyInfo
	for rows.Next() {
		var name, column, pkSchema, pkTable, refColumn, onUpdate, onDelete string
		if err := rows.Scan(&name, &column, &pkSchema, &pkTable, &refColumn, &onUpdate, &onDelete); err != nil {
			return nil, err
		}
		if n := len(fkeys); n == 0 || fkeys[n-1].name != name {
			fkeys = append(fkeys, foreignKeyInfo{
				name:     name,
				pkSchema: pkSchema,
				pkTable:  pkTable,
				onUpdate: onUpdate,
				onDelete: onDelete,
			})
		}
		fk := &fkeys[len(fkeys)-1]
		fk.columns = append(fk.columns, column)
		fk.refs = append(fk.refs, refColumn)
	}

	return fkeys, rows.Err()
}

var mysqlTypes = map[string]string{
	"bigint":    "int8",
	"date":      "date",
	"datetime":  "timestamp",
	"decimal":   "float8",
	"double":    "float8",
	"float":     "float4",
	"int":       "int4",
	"integer":   "int4",
	"json":      "json",
	"mediumint": "int4",
	"numeric":   "float8",
	"smallint":  "int2",
	"timestamp": "timestamptz",
	"tinyint":   "int2",
}

// mysqlTypeDoc maps a MySQL column type onto a catalog type. tinyint(1) is
// the conventional boolean. Character, enum and blob types become text.
func mysqlTypeDoc(dataType, columnType string) *model.TypeDoc {
	if strings.HasPrefix(strings.ToLower(columnType), "tinyint(1)") {
		return typeDoc("boolean")
	}
	if name, ok := mysqlTypes[strings.ToLower(dataType)]; ok {
		return typeDoc(name)
	}
	return typeDoc("text")
}

// mysqlDefault interprets a literal default, which MySQL reports unquoted
func mysqlDefault(typeName, raw string) any {
	switch typeName {
	case "boolean":
		return raw == "1"
	case "int2", "int4", "int8", "float4", "float8":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return nil
	}
	return raw
}

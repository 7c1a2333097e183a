package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/tordrt/catalogmodel/internal/model"
)

// PostgresExtractor handles model extraction from PostgreSQL
type PostgresExtractor struct {
	client  *PostgresClient
	schemas []string
}

// NewPostgresExtractor creates a new PostgreSQL model extractor. With no
// schema names, the public schema is read.
func NewPostgresExtractor(client *PostgresClient, schemas ...string) *PostgresExtractor {
	if len(schemas) == 0 {
		schemas = []string{"public"}
	}
	return &PostgresExtractor{
		client:  client,
		schemas: schemas,
	}
}

// ExtractModel extracts the named tables of every configured schema.
// If tables is empty, extracts all tables.
func (e *PostgresExtractor) ExtractModel(ctx context.Context, tables []string) (*model.ModelDoc, error) {
	doc := newModelDoc()

	for _, schemaName := range e.schemas {
		infos, err := e.getTables(ctx, schemaName)
		if err != nil {
			return nil, fmt.Errorf("failed to get tables of %s: %w", schemaName, err)
		}
		if infos, err = filterTables(infos, tables); err != nil {
			return nil, err
		}

		for _, info := range infos {
			table, err := e.extractTable(ctx, info)
			if err != nil {
				return nil, fmt.Errorf("failed to extract table %s.%s: %w", info.schema, info.name, err)
			}
			addTable(doc, table)
		}
	}

	return doc, nil
}

// getTables returns the base tables of one schema
func (e *PostgresExtractor) getTables(ctx context.Context, schemaName string) ([]tableInfo, error) {
	query := `
		SELECT t.table_name,
			obj_description(format('%I.%I', t.table_schema, t.table_name)::regclass, 'pg_class')
		FROM information_schema.tables t
		WHERE t.table_schema = $1 AND t.table_type = 'BASE TABLE'
		ORDER BY t.table_name
	`

	rows, err := e.client.GetConnection().Query(ctx, query, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []tableInfo
	for rows.Next() {
		info := tableInfo{schema: schemaName}
		if err := rows.Scan(&info.name, &info.comment); err != nil {
			return nil, err
		}
		tables = append(tables, info)
	}

	return tables, rows.Err()
}

// extractTable extracts all information for a single table
func (e *PostgresExtractor) extractTable(ctx context.Context, info tableInfo) (*model.TableDoc, error) {
	table := newTableDoc(info)

	columns, err := e.extractColumns(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	table.ColumnDefinitions = columns

	keys, err := e.extractKeys(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("failed to extract keys: %w", err)
	}
	table.Keys = keys

	fkeys, err := e.extractForeignKeys(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	for _, fk := range fkeys {
		table.ForeignKeys = append(table.ForeignKeys, newForeignKeyDoc(table, fk))
	}

	return table, nil
}

// extractColumns extracts column information for a table
func (e *PostgresExtractor) extractColumns(ctx context.Context, info tableInfo) ([]*model.ColumnDoc, error) {
	query := `
		SELECT
			c.column_name,
			c.udt_name,
			c.domain_name,
			c.is_nullable,
			c.column_default,
			col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position::int)
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := e.client.GetConnection().Query(ctx, query, info.schema, info.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []*model.ColumnDoc
	for rows.Next() {
		var name, udtName, nullable string
		var domainName, defaultVal, comment *string

		if err := rows.Scan(&name, &udtName, &domainName, &nullable, &defaultVal, &comment); err != nil {
			return nil, err
		}

		typ := postgresTypeDoc(udtName)
		var def any
		if defaultVal != nil {
			if serial, ok := serialTypes[typ.TypeName]; ok && strings.HasPrefix(*defaultVal, "nextval(") {
				typ = typeDoc(serial)
			} else {
				def = parseDefault(*defaultVal)
			}
		}
		if domainName != nil {
			typ = domainTypeDoc(*domainName, typ)
		}

		columns = append(columns, newColumnDoc(name, typ, nullable == "YES", def, comment))
	}

	return columns, rows.Err()
}

// extractKeys extracts primary key and unique constraints in name order
func (e *PostgresExtractor) extractKeys(ctx context.Context, info tableInfo) ([]*model.KeyDoc, error) {
	query := `
		SELECT
			con.conname::text,
			array(
				SELECT a.attname::text
				FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
				ORDER BY k.ord
			),
			obj_description(con.oid, 'pg_constraint')
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE con.contype IN ('p', 'u') AND n.nspname = $1 AND c.relname = $2
		ORDER BY con.conname
	`

	rows, err := e.client.GetConnection().Query(ctx, query, info.schema, info.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []*model.KeyDoc{}
	for rows.Next() {
		var name string
		var columns []string
		var comment *string
		if err := rows.Scan(&name, &columns, &comment); err != nil {
			return nil, err
		}
		keys = append(keys, newKeyDoc(info.schema, name, columns, comment))
	}

	return keys, rows.Err()
}

// extractForeignKeys extracts foreign key constraints in name order
func (e *PostgresExtractor) extractForeignKeys(ctx context.Context, info tableInfo) ([]foreignKeyInfo, error) {
	query := `
		SELECT
			con.conname::text,
			fn.nspname::text,
			fc.relname::text,
			array(
				SELECT a.attname::text
				FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
				ORDER BY k.ord
			),
			array(
				SELECT a.attname::text
				FROM unnest(con.confkey) WITH ORDINALITY AS k(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = con.confrelid AND a.attnum = k.attnum
				ORDER BY k.ord
			),
			con.confupdtype::text,
			con.confdeltype::text,
			obj_description(con.oid, 'pg_constraint')
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_class fc ON fc.oid = con.confrelid
		JOIN pg_namespace fn ON fn.oid = fc.relnamespace
		WHERE con.contype = 'f' AND n.nspname = $1 AND c.relname = $2
		ORDER BY con.conname
	`

	rows, err := e.client.GetConnection().Query(ctx, query, info.schema, info.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fkeys []foreignKeyInfo
	for rows.Next() {
		var fk foreignKeyInfo
		var onUpdate, onDelete string
		if err := rows.Scan(&fk.name, &fk.pkSchema, &fk.pkTable, &fk.columns, &fk.refs, &onUpdate, &onDelete, &fk.comment); err != nil {
			return nil, err
		}
		fk.onUpdate = postgresActions[onUpdate]
		fk.onDelete = postgresActions[onDelete]
		fkeys = append(fkeys, fk)
	}

	return fkeys, rows.Err()
}

var postgresActions = map[string]string{
	"a": "NO ACTION",
	"r": "RESTRICT",
	"c": "CASCADE",
	"n": "SET NULL",
	"d": "SET DEFAULT",
}

var postgresTypes = map[string]string{
	"bool":        "boolean",
	"bpchar":      "text",
	"char":        "text",
	"date":        "date",
	"float4":      "float4",
	"float8":      "float8",
	"int2":        "int2",
	"int4":        "int4",
	"int8":        "int8",
	"json":        "json",
	"jsonb":       "jsonb",
	"numeric":     "float8",
	"text":        "text",
	"timestamp":   "timestamp",
	"timestamptz": "timestamptz",
	"uuid":        "text",
	"varchar":     "text",
}

var serialTypes = map[string]string{
	"int2": "serial2",
	"int4": "serial4",
	"int8": "serial8",
}

// postgresTypeDoc maps a PostgreSQL udt_name onto a catalog type. Array
// udt names carry a leading underscore.
func postgresTypeDoc(udtName string) *model.TypeDoc {
	if base, ok := strings.CutPrefix(udtName, "_"); ok {
		return arrayTypeDoc(postgresTypeDoc(base))
	}
	if name, ok := postgresTypes[udtName]; ok {
		return typeDoc(name)
	}
	return typeDoc(udtName)
}

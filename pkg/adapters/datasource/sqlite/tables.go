package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource"
)

// tableCache memoizes PRAGMA table_info lookups for one describe call. It
// queries through the probe transaction, which holds the only connection of
// an in-memory database.
type tableCache struct {
	tx     *sql.Tx
	tables map[string][]datasource.ColumnMetadata
}

func newTableCache(tx *sql.Tx) *tableCache {
	return &tableCache{tx: tx, tables: make(map[string][]datasource.ColumnMetadata)}
}

// columns returns the declared columns of a table, optionally schema
// qualified. A missing table yields no columns.
func (c *tableCache) columns(ctx context.Context, table string) ([]datasource.ColumnMetadata, error) {
	key := strings.ToLower(table)
	if cols, ok := c.tables[key]; ok {
		return cols, nil
	}

	schema, name := splitTable(table)
	query := fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(name))
	if schema != "" {
		query = fmt.Sprintf("PRAGMA %s.table_info(%s)", quoteIdent(schema), quoteIdent(name))
	}

	rows, err := c.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []datasource.ColumnMetadata
	for rows.Next() {
		var (
			cid       int
			colName   string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info %s: %w", table, err)
		}
		cols = append(cols, datasource.ColumnMetadata{
			ColumnName:      colName,
			DataType:        colType,
			IsNullable:      notNull == 0,
			IsPrimaryKey:    pk > 0,
			OrdinalPosition: cid + 1,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	c.tables[key] = cols
	return cols, nil
}

// find looks a column up across tables in order; the first match wins.
func (c *tableCache) find(ctx context.Context, tables []string, column string) (datasource.ColumnMetadata, bool, error) {
	column = unquote(column)
	for _, t := range tables {
		cols, err := c.columns(ctx, t)
		if err != nil {
			return datasource.ColumnMetadata{}, false, err
		}
		for _, col := range cols {
			if strings.EqualFold(col.ColumnName, column) {
				return col, true, nil
			}
		}
	}
	return datasource.ColumnMetadata{}, false, nil
}

func splitTable(table string) (schema, name string) {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		return unquote(table[:i]), unquote(table[i+1:])
	}
	return "", unquote(table)
}

// unquote strips "", [] or `` identifier quoting.
func unquote(ident string) string {
	if len(ident) >= 2 {
		switch {
		case ident[0] == '"' && ident[len(ident)-1] == '"',
			ident[0] == '[' && ident[len(ident)-1] == ']',
			ident[0] == '`' && ident[len(ident)-1] == '`':
			return ident[1 : len(ident)-1]
		}
	}
	return ident
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

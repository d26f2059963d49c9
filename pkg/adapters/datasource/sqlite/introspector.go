package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/logging"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/models"
	sqlparse "github.com/ekaya-inc/ekaya-sql-connector/pkg/sql"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/sqltype"
)

// Introspector resolves metadata with a rollback probe. SQLite has no way to
// describe a statement's parameters, and result columns of DML ... RETURNING
// only exist once the statement runs, so the statement is executed with NULL
// arguments inside a transaction that is always rolled back.
//
// Parameter types come from the column each marker is compared with or
// assigned to, looked up with PRAGMA table_info.
type Introspector struct {
	adapter *Adapter
	db      *sql.DB
	logger  *zap.Logger
}

// NewIntrospector creates a SQLite type introspector.
// If logger is nil, a no-op logger is used.
func NewIntrospector(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, datasourceID uuid.UUID, userID string, logger *zap.Logger) (*Introspector, error) {
	adapter, err := NewAdapter(ctx, cfg, connMgr, datasourceID, userID)
	if err != nil {
		return nil, err
	}
	intro := newIntrospector(adapter.db, logger)
	intro.adapter = adapter
	return intro, nil
}

func newIntrospector(db *sql.DB, logger *zap.Logger) *Introspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Introspector{db: db, logger: logger.Named("sqlite-introspector")}
}

// PlaceholderStyle returns ?, the only positional style SQLite binds here.
func (i *Introspector) PlaceholderStyle() sqlparse.PlaceholderStyle {
	return sqlparse.PlaceholderQuestion
}

// DescribeStrategy reports the rollback probe.
func (i *Introspector) DescribeStrategy() datasource.DescribeStrategy {
	return datasource.StrategyRollbackProbe
}

// DescribeStatement runs the probe. The transaction is rolled back on every
// path, including success.
func (i *Introspector) DescribeStatement(ctx context.Context, stmt *sqlparse.ParsedStatement) (desc *datasource.StatementDescription, err error) {
	if stmt.Kind == sqlparse.KindCall {
		return nil, fmt.Errorf("CALL %s: sqlite has no stored procedures", stmt.Procedure)
	}
	if stmt.Style != sqlparse.PlaceholderQuestion {
		return nil, fmt.Errorf("sqlite requires %s placeholders, statement uses %s", sqlparse.PlaceholderQuestion, stmt.Style)
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin probe transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			i.logger.Error("probe rollback failed", zap.String("error", logging.SanitizeError(rbErr)))
			if err == nil {
				desc, err = nil, fmt.Errorf("rollback probe transaction: %w", rbErr)
			}
		}
	}()

	tables := newTableCache(tx)

	columns, err := i.probe(ctx, tx, stmt, tables)
	if err != nil {
		return nil, i.statementError(stmt, err)
	}

	params, err := i.parameterTypes(ctx, stmt, tables)
	if err != nil {
		return nil, err
	}

	i.logger.Debug("described statement",
		zap.String("kind", stmt.Kind.String()),
		zap.Int("parameters", len(params)),
		zap.Int("columns", len(columns)),
	)
	return &datasource.StatementDescription{Parameters: params, Columns: columns}, nil
}

// probe executes the statement and reads its result columns. Statements that
// return nothing are only prepared.
func (i *Introspector) probe(ctx context.Context, tx *sql.Tx, stmt *sqlparse.ParsedStatement, tables *tableCache) ([]models.OutputColumn, error) {
	returning := stmt.HasReturning() && stmt.Kind != sqlparse.KindSelect
	if !stmt.Kind.ReturnsRows() && !returning {
		prepared, err := tx.PrepareContext(ctx, stmt.RewrittenText)
		if err != nil {
			return nil, err
		}
		return nil, prepared.Close()
	}

	args := make([]any, stmt.PlaceholderCount())
	rows, err := tx.QueryContext(ctx, stmt.RewrittenText, args...)
	if err != nil {
		// NULL arguments can violate NOT NULL or CHECK constraints. The
		// statement itself is valid; fall back to the declared columns.
		if returning && isConstraintError(err) {
			i.logger.Debug("probe hit a constraint, using declared RETURNING columns",
				zap.String("sql", logging.SanitizeQuery(stmt.RewrittenText)))
			return declaredReturning(ctx, stmt, tables)
		}
		return nil, err
	}
	types, err := rows.ColumnTypes()
	closeErr := rows.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}

	columns := make([]models.OutputColumn, len(types))
	for n, ct := range types {
		declared := ct.DatabaseTypeName()
		if declared == "" {
			// Expressions carry no declared type; try a same-named table column.
			if col, ok, err := tables.find(ctx, stmt.Tables, ct.Name()); err == nil && ok {
				declared = col.DataType
			}
		}
		columns[n] = models.OutputColumn{
			Name:      ct.Name(),
			Ordinal:   n + 1,
			Family:    sqltype.FromAffinity(declared),
			Returning: returning,
		}
	}
	return columns, nil
}

// declaredReturning builds RETURNING columns from the target table's schema.
func declaredReturning(ctx context.Context, stmt *sqlparse.ParsedStatement, tables *tableCache) ([]models.OutputColumn, error) {
	if len(stmt.Tables) == 0 {
		return nil, fmt.Errorf("no target table for RETURNING")
	}
	declared, err := tables.columns(ctx, stmt.Tables[0])
	if err != nil {
		return nil, err
	}

	var columns []models.OutputColumn
	add := func(name, dataType string) {
		columns = append(columns, models.OutputColumn{
			Name:      name,
			Ordinal:   len(columns) + 1,
			Family:    sqltype.FromAffinity(dataType),
			Returning: true,
		})
	}
	if stmt.Returning.Wildcard {
		for _, c := range declared {
			add(c.ColumnName, c.DataType)
		}
	}
	for _, name := range stmt.Returning.Columns {
		dataType := ""
		for _, c := range declared {
			if strings.EqualFold(c.ColumnName, name) {
				dataType = c.DataType
				break
			}
		}
		add(name, dataType)
	}
	return columns, nil
}

// parameterTypes resolves each placeholder from its column hint. Unhinted
// markers resolve to OTHER.
func (i *Introspector) parameterTypes(ctx context.Context, stmt *sqlparse.ParsedStatement, tables *tableCache) ([]datasource.ParameterType, error) {
	params := make([]datasource.ParameterType, stmt.PlaceholderCount())
	for n := range params {
		params[n] = datasource.ParameterType{Ordinal: n + 1, Family: sqltype.Other}
	}

	for _, p := range stmt.Parameters {
		if p.Column == "" {
			continue
		}
		col, ok, err := tables.find(ctx, stmt.Tables, p.Column)
		if err != nil {
			return nil, fmt.Errorf("resolve column %s: %w", p.Column, err)
		}
		if !ok {
			continue
		}
		family := sqltype.FromAffinity(col.DataType)
		for _, pos := range p.Positions {
			if pos >= 1 && pos <= len(params) {
				params[pos-1] = datasource.ParameterType{Ordinal: pos, TypeName: col.DataType, Family: family}
			}
		}
	}
	return params, nil
}

func (i *Introspector) statementError(stmt *sqlparse.ParsedStatement, err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		i.logger.Debug("statement rejected",
			zap.String("sql", logging.SanitizeQuery(stmt.RewrittenText)),
			zap.Int("code", sqliteErr.Code()),
		)
		return apperrors.NewStatementInvalid(err)
	}
	return fmt.Errorf("describe statement: %w", err)
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	// Extended codes carry the primary code in the low byte.
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

// DescribeProcedure always fails: SQLite has no stored procedures.
func (i *Introspector) DescribeProcedure(ctx context.Context, name string) (*datasource.ProcedureDescription, error) {
	return nil, apperrors.ProcedureNotFound(name)
}

// ListProcedures returns an empty list.
func (i *Introspector) ListProcedures(ctx context.Context, pattern string) ([]datasource.ProcedureDescription, error) {
	return []datasource.ProcedureDescription{}, nil
}

// TestConnection verifies the database is reachable.
func (i *Introspector) TestConnection(ctx context.Context) error {
	if i.adapter == nil {
		return i.db.PingContext(ctx)
	}
	return i.adapter.TestConnection(ctx)
}

// Close releases the introspector (but NOT the DB if managed).
func (i *Introspector) Close() error {
	if i.adapter == nil {
		return nil
	}
	return i.adapter.Close()
}

// Ensure Introspector implements the datasource interfaces at compile time.
var (
	_ datasource.TypeIntrospector = (*Introspector)(nil)
	_ datasource.ConnectionTester = (*Introspector)(nil)
)

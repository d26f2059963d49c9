package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	mssqldb "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/logging"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/models"
	sqlparse "github.com/ekaya-inc/ekaya-sql-connector/pkg/sql"
)

// Introspector describes statements with sp_describe_undeclared_parameters and
// sp_describe_first_result_set. Neither procedure executes the statement.
type Introspector struct {
	adapter *Adapter
	db      *sql.DB
	logger  *zap.Logger
}

// NewIntrospector creates a SQL Server type introspector.
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
	return &Introspector{db: db, logger: logger.Named("mssql-introspector")}
}

// PlaceholderStyle returns the @pN style sp_describe_* expects.
func (i *Introspector) PlaceholderStyle() sqlparse.PlaceholderStyle {
	return sqlparse.PlaceholderAtP
}

// DescribeStrategy reports native describe through sp_describe_undeclared_parameters
// and sp_describe_first_result_set.
func (i *Introspector) DescribeStrategy() datasource.DescribeStrategy {
	return datasource.StrategyNativeDescribe
}

// DescribeStatement resolves parameter types first, then passes them as the
// @params declaration so the result set can be described.
func (i *Introspector) DescribeStatement(ctx context.Context, stmt *sqlparse.ParsedStatement) (*datasource.StatementDescription, error) {
	if stmt.Kind == sqlparse.KindCall {
		return nil, fmt.Errorf("CALL %s is described from the procedure catalog", stmt.Procedure)
	}
	if stmt.Style != sqlparse.PlaceholderAtP {
		return nil, fmt.Errorf("mssql requires %s placeholders, statement uses %s", sqlparse.PlaceholderAtP, stmt.Style)
	}

	// One connection for both calls.
	conn, err := i.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	params, err := i.describeParameters(ctx, conn, stmt.RewrittenText)
	if err != nil {
		return nil, i.statementError(stmt, err)
	}

	columns, err := i.describeResultSet(ctx, conn, stmt.RewrittenText, paramDeclaration(params))
	if err != nil {
		return nil, i.statementError(stmt, err)
	}

	// SQL Server has no RETURNING; an OUTPUT clause is the equivalent and its
	// columns are the whole result set.
	returning := stmt.HasReturning() && stmt.Kind != sqlparse.KindSelect
	for n := range columns {
		columns[n].Returning = returning
	}

	desc := &datasource.StatementDescription{Parameters: params, Columns: columns}
	i.logger.Debug("described statement",
		zap.String("kind", stmt.Kind.String()),
		zap.Int("parameters", len(desc.Parameters)),
		zap.Int("columns", len(desc.Columns)),
	)
	return desc, nil
}

func (i *Introspector) describeParameters(ctx context.Context, conn *sql.Conn, tsql string) ([]datasource.ParameterType, error) {
	rows, err := conn.QueryContext(ctx, "sp_describe_undeclared_parameters", sql.Named("tsql", tsql))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var params []datasource.ParameterType
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan parameter: %w", err)
		}
		typeName := rowString(row, "suggested_system_type_name")
		ordinal := placeholderOrdinal(rowString(row, "name"))
		if ordinal == 0 {
			ordinal = rowInt(row, "parameter_ordinal")
		}
		params = append(params, datasource.ParameterType{
			Ordinal:  ordinal,
			TypeName: typeName,
			Family:   familyForSystemType(typeName),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(params, func(a, b int) bool { return params[a].Ordinal < params[b].Ordinal })
	return params, nil
}

func (i *Introspector) describeResultSet(ctx context.Context, conn *sql.Conn, tsql, declaration string) ([]models.OutputColumn, error) {
	args := []any{sql.Named("tsql", tsql)}
	if declaration != "" {
		args = append(args, sql.Named("params", declaration))
	}

	rows, err := conn.QueryContext(ctx, "sp_describe_first_result_set", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []models.OutputColumn
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if rowBool(row, "is_hidden") {
			continue
		}
		columns = append(columns, models.OutputColumn{
			Name:    rowString(row, "name"),
			Ordinal: len(columns) + 1,
			Family:  familyForSystemType(rowString(row, "system_type_name")),
		})
	}
	return columns, rows.Err()
}

// statementError maps server rejections to StatementInvalid. Anything else
// (network, context) is returned wrapped as is.
func (i *Introspector) statementError(stmt *sqlparse.ParsedStatement, err error) error {
	var msErr mssqldb.Error
	if errors.As(err, &msErr) {
		i.logger.Debug("statement rejected",
			zap.String("sql", logging.SanitizeQuery(stmt.RewrittenText)),
			zap.Int32("number", msErr.Number),
		)
		return apperrors.NewStatementInvalid(err)
	}
	return fmt.Errorf("describe statement: %w", err)
}

const proceduresQuery = `
	SELECT
		r.ROUTINE_SCHEMA,
		r.ROUTINE_NAME,
		p.ORDINAL_POSITION,
		ISNULL(p.PARAMETER_MODE, ''),
		ISNULL(p.PARAMETER_NAME, ''),
		ISNULL(p.DATA_TYPE, '')
	FROM INFORMATION_SCHEMA.ROUTINES r
	LEFT JOIN INFORMATION_SCHEMA.PARAMETERS p
		ON p.SPECIFIC_SCHEMA = r.SPECIFIC_SCHEMA
		AND p.SPECIFIC_NAME = r.SPECIFIC_NAME
		AND p.ORDINAL_POSITION > 0
	WHERE r.ROUTINE_TYPE = 'PROCEDURE'
	  AND %s
	ORDER BY r.ROUTINE_SCHEMA, r.ROUTINE_NAME, p.ORDINAL_POSITION
`

// ListProcedures returns procedures whose name starts with pattern,
// case-insensitive. LIKE wildcards in the pattern match literally.
func (i *Introspector) ListProcedures(ctx context.Context, pattern string) ([]datasource.ProcedureDescription, error) {
	query := fmt.Sprintf(proceduresQuery, `UPPER(r.ROUTINE_NAME) LIKE UPPER(@p1) + '%' ESCAPE '\'`)
	return i.queryProcedures(ctx, query, escapeLike(pattern))
}

// DescribeProcedure looks up one procedure by name, optionally schema qualified.
func (i *Introspector) DescribeProcedure(ctx context.Context, name string) (*datasource.ProcedureDescription, error) {
	schema, routine := parseSchemaTable(name)

	var procs []datasource.ProcedureDescription
	var err error
	if schema == "" {
		query := fmt.Sprintf(proceduresQuery, `UPPER(r.ROUTINE_NAME) = UPPER(@p1)`)
		procs, err = i.queryProcedures(ctx, query, routine)
	} else {
		query := fmt.Sprintf(proceduresQuery, `UPPER(r.ROUTINE_NAME) = UPPER(@p1) AND UPPER(r.ROUTINE_SCHEMA) = UPPER(@p2)`)
		procs, err = i.queryProcedures(ctx, query, routine, schema)
	}
	if err != nil {
		return nil, err
	}
	if len(procs) == 0 {
		return nil, apperrors.ProcedureNotFound(name)
	}
	return &procs[0], nil
}

func (i *Introspector) queryProcedures(ctx context.Context, query string, args ...any) ([]datasource.ProcedureDescription, error) {
	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		i.logger.Error("procedure catalog query failed", zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("query procedures: %w", err)
	}
	defer rows.Close()

	var procs []datasource.ProcedureDescription
	for rows.Next() {
		var (
			schema, routine           string
			ordinal                   sql.NullInt32
			mode, paramName, dataType string
		)
		if err := rows.Scan(&schema, &routine, &ordinal, &mode, &paramName, &dataType); err != nil {
			return nil, fmt.Errorf("scan procedure: %w", err)
		}

		last := len(procs) - 1
		if last < 0 || procs[last].Schema != schema || procs[last].Name != routine {
			procs = append(procs, datasource.ProcedureDescription{Schema: schema, Name: routine})
			last++
		}
		if !ordinal.Valid {
			continue // procedure without parameters
		}
		procs[last].Parameters = append(procs[last].Parameters, models.OutputColumn{
			Name:      strings.TrimPrefix(paramName, "@"),
			Ordinal:   int(ordinal.Int32),
			Family:    familyForSystemType(dataType),
			Direction: models.ParseDirection(mode),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate procedures: %w", err)
	}
	return procs, nil
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

// paramDeclaration renders "@p1 int, @p2 varchar(10)" for sp_describe_first_result_set.
func paramDeclaration(params []datasource.ParameterType) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.TypeName == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("@p%d %s", p.Ordinal, p.TypeName))
	}
	return strings.Join(parts, ", ")
}

// placeholderOrdinal returns N for "@pN", or 0.
func placeholderOrdinal(name string) int {
	rest, ok := strings.CutPrefix(strings.ToLower(name), "@p")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0
	}
	return n
}

// Ensure Introspector implements the datasource interfaces at compile time.
var (
	_ datasource.TypeIntrospector = (*Introspector)(nil)
	_ datasource.ConnectionTester = (*Introspector)(nil)
)

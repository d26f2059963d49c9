package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/logging"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/models"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/sql"
)

// Introspector describes statements through the extended query protocol: a
// Parse/Describe round trip on the unnamed statement returns parameter and
// result field types without executing anything.
type Introspector struct {
	adapter *Adapter
	logger  *zap.Logger
}

// NewIntrospector creates a PostgreSQL type introspector using the connection manager.
// If logger is nil, a no-op logger is used.
func NewIntrospector(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, datasourceID uuid.UUID, userID string, logger *zap.Logger) (*Introspector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	adapter, err := NewAdapter(ctx, cfg, connMgr, datasourceID, userID)
	if err != nil {
		return nil, err
	}
	return &Introspector{adapter: adapter, logger: logger.Named("postgres-introspector")}, nil
}

// PlaceholderStyle returns the $n style PostgreSQL prepares.
func (i *Introspector) PlaceholderStyle() sql.PlaceholderStyle {
	return sql.PlaceholderDollar
}

// DescribeStrategy reports native describe: the server types a prepared statement.
func (i *Introspector) DescribeStrategy() datasource.DescribeStrategy {
	return datasource.StrategyNativeDescribe
}

// DescribeStatement prepares the rewritten text on the unnamed statement of a
// pooled connection. RETURNING output is part of the described row.
func (i *Introspector) DescribeStatement(ctx context.Context, stmt *sql.ParsedStatement) (*datasource.StatementDescription, error) {
	if stmt.Kind == sql.KindCall {
		return nil, fmt.Errorf("CALL %s is described from the procedure catalog", stmt.Procedure)
	}
	if stmt.Style != sql.PlaceholderDollar {
		return nil, fmt.Errorf("postgres requires %s placeholders, statement uses %s", sql.PlaceholderDollar, stmt.Style)
	}

	conn, err := i.adapter.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	sd, err := conn.Conn().PgConn().Prepare(ctx, "", stmt.RewrittenText, nil)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			i.logger.Debug("statement rejected",
				zap.String("sql", logging.SanitizeQuery(stmt.RewrittenText)),
				zap.String("sqlstate", pgErr.Code),
			)
			return nil, apperrors.NewStatementInvalid(err)
		}
		return nil, fmt.Errorf("describe statement: %w", err)
	}

	typeMap := conn.Conn().TypeMap()
	desc := &datasource.StatementDescription{
		Parameters: make([]datasource.ParameterType, len(sd.ParamOIDs)),
		Columns:    make([]models.OutputColumn, len(sd.Fields)),
	}
	for n, oid := range sd.ParamOIDs {
		name, family := familyForOID(oid, typeMap)
		desc.Parameters[n] = datasource.ParameterType{Ordinal: n + 1, TypeName: name, Family: family}
	}

	returning := stmt.HasReturning() && stmt.Kind != sql.KindSelect
	for n, f := range sd.Fields {
		_, family := familyForOID(f.DataTypeOID, typeMap)
		desc.Columns[n] = models.OutputColumn{
			Name:      f.Name,
			Ordinal:   n + 1,
			Family:    family,
			Returning: returning,
		}
	}

	i.logger.Debug("described statement",
		zap.String("kind", stmt.Kind.String()),
		zap.Int("parameters", len(desc.Parameters)),
		zap.Int("columns", len(desc.Columns)),
	)
	return desc, nil
}

const proceduresQuery = `
	SELECT
		r.specific_name,
		r.routine_schema,
		r.routine_name,
		p.ordinal_position,
		COALESCE(p.parameter_mode, ''),
		COALESCE(p.parameter_name, ''),
		COALESCE(p.data_type, ''),
		COALESCE(p.udt_name, '')
	FROM information_schema.routines r
	LEFT JOIN information_schema.parameters p
		ON p.specific_schema = r.specific_schema
		AND p.specific_name = r.specific_name
	WHERE r.routine_type IN ('PROCEDURE', 'FUNCTION')
	  AND r.routine_schema NOT IN ('pg_catalog', 'information_schema')
	  AND %s
	ORDER BY r.routine_schema, r.routine_name, r.specific_name, p.ordinal_position
`

// ListProcedures returns procedures and functions whose name starts with
// pattern, case-insensitive. LIKE wildcards in the pattern match literally.
func (i *Introspector) ListProcedures(ctx context.Context, pattern string) ([]datasource.ProcedureDescription, error) {
	query := fmt.Sprintf(proceduresQuery, `r.routine_name ILIKE $1 || '%'`)
	procs, err := i.queryProcedures(ctx, query, escapeLike(pattern))
	if err != nil {
		return nil, err
	}
	return procs, nil
}

// DescribeProcedure looks up one procedure by name, optionally schema
// qualified. Unqualified names match in any non-system schema; the first by
// schema name wins.
func (i *Introspector) DescribeProcedure(ctx context.Context, name string) (*datasource.ProcedureDescription, error) {
	schema, routine := splitQualified(name)

	var procs []datasource.ProcedureDescription
	var err error
	if schema == "" {
		query := fmt.Sprintf(proceduresQuery, `lower(r.routine_name) = lower($1)`)
		procs, err = i.queryProcedures(ctx, query, routine)
	} else {
		query := fmt.Sprintf(proceduresQuery, `lower(r.routine_name) = lower($1) AND lower(r.routine_schema) = lower($2)`)
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
	rows, err := i.adapter.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query procedures: %w", err)
	}
	defer rows.Close()

	var procs []datasource.ProcedureDescription
	index := make(map[string]int)
	for rows.Next() {
		var (
			specific, schema, routine string
			ordinal                   *int32
			mode, paramName, dataType string
			udtName                   string
		)
		if err := rows.Scan(&specific, &schema, &routine, &ordinal, &mode, &paramName, &dataType, &udtName); err != nil {
			return nil, fmt.Errorf("scan procedure: %w", err)
		}

		key := schema + "." + specific
		n, ok := index[key]
		if !ok {
			n = len(procs)
			index[key] = n
			procs = append(procs, datasource.ProcedureDescription{Schema: schema, Name: routine})
		}
		if ordinal == nil {
			continue // routine without parameters
		}
		if paramName == "" {
			paramName = fmt.Sprintf("arg%d", *ordinal)
		}
		procs[n].Parameters = append(procs[n].Parameters, models.OutputColumn{
			Name:      paramName,
			Ordinal:   int(*ordinal),
			Family:    familyForCatalogType(dataType, udtName),
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
	return i.adapter.TestConnection(ctx)
}

// Close releases the introspector (but NOT the pool if managed).
func (i *Introspector) Close() error {
	return i.adapter.Close()
}

// escapeLike escapes LIKE wildcards so the pattern matches as a literal prefix.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// splitQualified splits "schema.name"; quotes are removed.
func splitQualified(name string) (schema, routine string) {
	name = strings.ReplaceAll(name, `"`, "")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// Ensure Introspector implements the datasource interfaces at compile time.
var (
	_ datasource.TypeIntrospector = (*Introspector)(nil)
	_ datasource.ConnectionTester = (*Introspector)(nil)
)

package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/sql"
)

// ConnectionTester tests database connectivity.
// Each implementation owns its connection and must be closed when done.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	// Returns nil if connection is healthy, error otherwise.
	TestConnection(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}

// DescribeStrategy names how an introspector obtains statement metadata. It is
// reported to callers so the choice is never hidden.
type DescribeStrategy string

const (
	// StrategyNativeDescribe uses the database's zero-execution describe
	// capability (protocol-level prepare or a describe procedure).
	StrategyNativeDescribe DescribeStrategy = "native_describe"

	// StrategyRollbackProbe executes the statement inside a transaction that is
	// always rolled back, then reads the result column metadata.
	StrategyRollbackProbe DescribeStrategy = "rollback_probe"
)

// TypeIntrospector resolves parameter and output column types against a live
// database. Implementations never commit data changes and never retry.
//
// Errors:
//   - the database rejects the statement: *apperrors.StatementInvalidError
//   - the procedure is absent from the catalog: apperrors.ErrProcedureNotFound
type TypeIntrospector interface {
	// DescribeStatement resolves the families of every placeholder and every
	// result column of a parsed, non-CALL statement.
	DescribeStatement(ctx context.Context, stmt *sql.ParsedStatement) (*StatementDescription, error)

	// DescribeProcedure looks up the declared parameter list of a procedure.
	DescribeProcedure(ctx context.Context, name string) (*ProcedureDescription, error)

	// ListProcedures returns procedures whose name starts with pattern
	// (case-insensitive). An empty pattern lists every procedure.
	ListProcedures(ctx context.Context, pattern string) ([]ProcedureDescription, error)

	// PlaceholderStyle is the positional placeholder syntax the driver accepts.
	PlaceholderStyle() sql.PlaceholderStyle

	// DescribeStrategy reports how DescribeStatement gets its metadata.
	DescribeStrategy() DescribeStrategy

	// Close releases the connection held by the introspector.
	Close() error
}

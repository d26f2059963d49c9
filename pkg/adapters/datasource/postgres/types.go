package postgres

import (
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/sqltype"
)

const refcursorOID = 1790

// pgTypeNameFromOID maps PostgreSQL type OIDs to type names understood by
// sqltype.FromTypeName. This covers the built-in types; unknown OIDs return "".
func pgTypeNameFromOID(oid uint32) string {
	switch oid {
	case pgtype.BoolOID:
		return "BOOL"
	case pgtype.ByteaOID:
		return "BYTEA"
	case pgtype.QCharOID:
		return "CHAR"
	case pgtype.NameOID:
		return "NAME"
	case pgtype.Int8OID:
		return "INT8"
	case pgtype.Int2OID:
		return "INT2"
	case pgtype.Int4OID:
		return "INT4"
	case pgtype.TextOID:
		return "TEXT"
	case pgtype.OIDOID:
		return "OID"
	case pgtype.JSONOID:
		return "JSON"
	case pgtype.XMLOID:
		return "XML"
	case pgtype.Float4OID:
		return "FLOAT4"
	case pgtype.Float8OID:
		return "FLOAT8"
	case 790:
		return "MONEY"
	case pgtype.BPCharOID:
		return "BPCHAR"
	case pgtype.VarcharOID:
		return "VARCHAR"
	case pgtype.DateOID:
		return "DATE"
	case pgtype.TimeOID:
		return "TIME"
	case pgtype.TimestampOID:
		return "TIMESTAMP"
	case pgtype.TimestamptzOID:
		return "TIMESTAMPTZ"
	case pgtype.TimetzOID:
		return "TIMETZ"
	case pgtype.BitOID, pgtype.VarbitOID:
		return "BIT"
	case pgtype.NumericOID:
		return "NUMERIC"
	case pgtype.UUIDOID:
		return "UUID"
	case pgtype.JSONBOID:
		return "JSONB"
	case pgtype.RecordOID:
		return "RECORD"
	case refcursorOID:
		return "REFCURSOR"
	// Array types
	case pgtype.BoolArrayOID:
		return "BOOL[]"
	case pgtype.Int2ArrayOID:
		return "INT2[]"
	case pgtype.Int4ArrayOID:
		return "INT4[]"
	case pgtype.Int8ArrayOID:
		return "INT8[]"
	case pgtype.TextArrayOID:
		return "TEXT[]"
	case pgtype.VarcharArrayOID:
		return "VARCHAR[]"
	case pgtype.Float4ArrayOID:
		return "FLOAT4[]"
	case pgtype.Float8ArrayOID:
		return "FLOAT8[]"
	case pgtype.UUIDArrayOID:
		return "UUID[]"
	case pgtype.JSONBArrayOID:
		return "JSONB[]"
	default:
		return ""
	}
}

// familyForOID resolves an OID to a family. Names from the connection's type
// map (enums, domains, extension types) are used when the OID is not built in.
func familyForOID(oid uint32, typeMap *pgtype.Map) (string, sqltype.Family) {
	name := pgTypeNameFromOID(oid)
	if name == "" && typeMap != nil {
		if t, ok := typeMap.TypeForOID(oid); ok {
			name = t.Name
		}
	}
	if name == "" {
		return "UNKNOWN", sqltype.Other
	}
	return name, sqltype.FromTypeName(name)
}

// familyForCatalogType resolves information_schema data_type/udt_name pairs.
// data_type is "ARRAY" for arrays and "USER-DEFINED" for enums and extensions.
func familyForCatalogType(dataType, udtName string) sqltype.Family {
	switch dataType {
	case "ARRAY":
		return sqltype.Array
	case "USER-DEFINED":
		return sqltype.FromTypeName(udtName)
	default:
		return sqltype.FromTypeName(dataType)
	}
}

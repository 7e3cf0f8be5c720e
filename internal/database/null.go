package database

import "database/sql"

// nullInt64ToIntPtr converts a sql.NullInt64 to a pointer (nil if not valid)
func nullInt64ToIntPtr(n sql.NullInt64) *int {
	if n.Valid {
		v := int(n.Int64)
		return &v
	}
	return nil
}

// intPtrToNull converts an optional int to a nullable column value
func intPtrToNull(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

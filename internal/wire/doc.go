// Package wire is the SQL Server client adapter.
//
// A Session is one authenticated TDS connection. Query returns every result
// set the batch produced; Exec runs a statement that produces none.
//
// Rows only expose type-directed accessors (Text, Int32, Int64, ...). Each
// accessor reports ErrTypeMismatch when the column's wire type cannot be
// read as the requested Go type, and present=false for NULL. There is no
// "give me whatever this is" accessor: callers that need one probe the
// accessors in a fixed order (see package decode).
package wire

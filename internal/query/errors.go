package query

import (
	"fmt"
	"strings"
)

// ParseError reports malformed query text. It is produced before any
// graph access happens.
type ParseError struct {
	// Position is the byte offset in the query text where the error
	// was detected.
	Position int

	// Message describes what was expected or found.
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Position, e.Message)
}

// UnknownEntityError reports a query that names a table/entity outside
// the closed set. It is detected at parse time so an invalid entity
// never produces a spurious empty result.
type UnknownEntityError struct {
	// Name is the entity name as written in the query.
	Name string
}

// Error implements the error interface.
func (e *UnknownEntityError) Error() string {
	valid := make([]string, len(Entities))
	for i, ent := range Entities {
		valid[i] = string(ent)
	}
	return fmt.Sprintf("unknown entity %q (valid: %s)", e.Name, strings.Join(valid, ", "))
}

package store

import (
	"fmt"
	"strings"
)

// ValuesBuilder renders a parameterized multi-row VALUES list.
// Placeholder numbers are derived from row and column index, so the SQL
// and the argument slice cannot drift apart.
type ValuesBuilder struct {
	casts []string
	args  []any
	rows  int
}

// NewValuesBuilder takes one Postgres type cast per column, e.g. "TEXT", "BIGINT"
func NewValuesBuilder(casts ...string) *ValuesBuilder {
	return &ValuesBuilder{casts: casts}
}

// Add appends a row. The number of values must match the number of columns.
func (b *ValuesBuilder) Add(values ...any) error {
	if len(values) != len(b.casts) {
		return fmt.Errorf("row %d has %d values, want %d", b.rows, len(values), len(b.casts))
	}
	b.args = append(b.args, values...)
	b.rows++
	return nil
}

func (b *ValuesBuilder) Len() int {
	return b.rows
}

// SQL returns "($1::TEXT, $2::BIGINT), ($3::TEXT, $4::BIGINT)"
func (b *ValuesBuilder) SQL() string {
	cols := len(b.casts)

	var sb strings.Builder
	for row := 0; row < b.rows; row++ {
		if row > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for col, cast := range b.casts {
			if col > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d::%s", row*cols+col+1, cast)
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

func (b *ValuesBuilder) Args() []any {
	return b.args
}

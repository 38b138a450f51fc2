package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "sqlite passes through",
			dialect:  DialectSQLite,
			query:    "SELECT * FROM cameras WHERE id = ? AND name = ?",
			expected: "SELECT * FROM cameras WHERE id = ? AND name = ?",
		},
		{
			name:     "postgres numbers placeholders",
			dialect:  DialectPostgres,
			query:    "SELECT * FROM cameras WHERE id = ? AND name = ?",
			expected: "SELECT * FROM cameras WHERE id = $1 AND name = $2",
		},
		{
			name:     "postgres no placeholders",
			dialect:  DialectPostgres,
			query:    "SELECT COUNT(*) FROM images",
			expected: "SELECT COUNT(*) FROM images",
		},
		{
			name:     "postgres many placeholders",
			dialect:  DialectPostgres,
			query:    "INSERT INTO t VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			expected: "INSERT INTO t VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dialect.rebind(tt.query))
		})
	}
}

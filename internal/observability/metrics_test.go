package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSQLOperation(t *testing.T) {
	tests := map[string]string{
		`SELECT * FROM "users"`:           "select",
		"  insert into comments values()": "insert",
		"UPDATE blog_posts SET title = ?": "update",
		"PRAGMA foreign_keys = ON":        "other",
		"":                                "unknown",
	}
	for sql, want := range tests {
		assert.Equal(t, want, sqlOperation(sql), sql)
	}
}

package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithDefaults(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{
			name: "bare dsn gets all options",
			dsn:  "app:pw@tcp(127.0.0.1:3306)/huddle",
			want: "app:pw@tcp(127.0.0.1:3306)/huddle?parseTime=true&charset=utf8mb4&loc=UTC",
		},
		{
			name: "existing query string is extended",
			dsn:  "app:pw@tcp(db:3306)/huddle?timeout=5s",
			want: "app:pw@tcp(db:3306)/huddle?timeout=5s&parseTime=true&charset=utf8mb4&loc=UTC",
		},
		{
			name: "explicit option wins",
			dsn:  "app:pw@tcp(db:3306)/huddle?loc=Local",
			want: "app:pw@tcp(db:3306)/huddle?loc=Local&parseTime=true&charset=utf8mb4",
		},
		{
			name: "fully specified dsn is untouched",
			dsn:  "app:pw@tcp(db:3306)/huddle?parseTime=true&charset=utf8mb4&loc=UTC",
			want: "app:pw@tcp(db:3306)/huddle?parseTime=true&charset=utf8mb4&loc=UTC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, withDefaults(tt.dsn))
		})
	}
}

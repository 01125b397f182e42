package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"memorial-site/internal/core/config"
)

func TestNormalizeMySQLDSN(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		user, pass string
		want       string
	}{
		{
			name: "native dsn untouched",
			in:   "root:pw@tcp(db:3306)/memorial_db?parseTime=true",
			want: "root:pw@tcp(db:3306)/memorial_db?parseTime=true",
		},
		{
			name: "url form",
			in:   "mysql://root:pw@db:3306/memorial_db",
			want: "root:pw@tcp(db:3306)/memorial_db?charset=utf8mb4&parseTime=true",
		},
		{
			name: "jdbc with overrides",
			in:   "jdbc:mysql://db:3306/memorial_db?useSSL=false&characterEncoding=utf8",
			user: "app", pass: "secret",
			want: "app:secret@tcp(db:3306)/memorial_db?charset=utf8&parseTime=true&tls=false",
		},
		{
			name: "credentials from query",
			in:   "mysql://db:3306/memorial_db?user=q&password=p&serverTimezone=UTC",
			want: "q:p@tcp(db:3306)/memorial_db?charset=utf8mb4&loc=UTC&parseTime=true",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeMySQLDSN(tt.in, tt.user, tt.pass))
		})
	}
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "root:****@tcp(db:3306)/x", maskDSN("root:pw@tcp(db:3306)/x"))
	assert.Equal(t, "tcp(db:3306)/x", maskDSN("tcp(db:3306)/x"))
}

func TestNewGorm_UnsupportedDriver(t *testing.T) {
	_, err := NewGorm(config.DB{Driver: "mongodb"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

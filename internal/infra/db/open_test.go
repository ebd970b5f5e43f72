package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfigFromEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want PoolConfig
	}{
		{
			name: "defaults",
			want: DefaultPoolConfig(),
		},
		{
			name: "overrides",
			env: map[string]string{
				"DB_MAX_OPEN_CONNS":     "50",
				"DB_MAX_IDLE_CONNS":     "20",
				"DB_CONN_MAX_LIFETIME":  "2h",
				"DB_CONN_MAX_IDLE_TIME": "45m",
			},
			want: PoolConfig{MaxOpenConns: 50, MaxIdleConns: 20, ConnMaxLifetime: 2 * time.Hour, ConnMaxIdleTime: 45 * time.Minute},
		},
		{
			name: "unusable values keep defaults",
			env: map[string]string{
				"DB_MAX_OPEN_CONNS":     "many",
				"DB_MAX_IDLE_CONNS":     "-10",
				"DB_CONN_MAX_LIFETIME":  "0s",
				"DB_CONN_MAX_IDLE_TIME": "soon",
			},
			want: DefaultPoolConfig(),
		},
		{
			name: "single override",
			env:  map[string]string{"DB_MAX_OPEN_CONNS": "5"},
			want: PoolConfig{MaxOpenConns: 5, MaxIdleConns: 10, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 30 * time.Minute},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_CONN_MAX_IDLE_TIME"} {
				t.Setenv(key, tt.env[key])
			}
			assert.Equal(t, tt.want, PoolConfigFromEnv())
		})
	}
}

func TestOpen_EmptyDSN(t *testing.T) {
	db, err := Open(context.Background(), "", DefaultPoolConfig(), nil)
	assert.Nil(t, db)
	assert.ErrorContains(t, err, "empty DSN")
}

func TestOpen_Unreachable(t *testing.T) {
	db, err := Open(context.Background(), "postgres://guard@127.0.0.1:1/guard?sslmode=disable&connect_timeout=1", DefaultPoolConfig(), nil)
	require.Error(t, err)
	assert.Nil(t, db)
	assert.ErrorContains(t, err, "ping database")
}

//go:build integration

package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/graknol/declarative-sqlite/internal/engine"
)

// TestMySQLEngineAgainstRealServer exercises OpenMySQL, ExecContext and
// QueryContext against a disposable MySQL server, the same way the pack's
// schema-migration tools verify their SQL against a real database instead
// of a mock. Run with `go test -tags integration ./internal/engine/...`;
// skipped by default since it needs a Docker daemon.
func TestMySQLEngineAgainstRealServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("reactor"),
		mysql.WithUsername("reactor"),
		mysql.WithPassword("reactor"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	dsn, err := container.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err)

	eng, err := engine.OpenMySQL(ctx, dsn)
	require.NoError(t, err)
	defer eng.Close()

	_, err = eng.ExecContext(ctx, "CREATE TABLE widgets (id BIGINT PRIMARY KEY, name VARCHAR(255))")
	require.NoError(t, err)

	_, err = eng.ExecContext(ctx, "INSERT INTO widgets (id, name) VALUES (1, 'gizmo')")
	require.NoError(t, err)

	row := eng.QueryRowContext(ctx, "SELECT name FROM widgets WHERE id = 1")
	var name string
	require.NoError(t, row.Scan(&name))
	require.Equal(t, "gizmo", name)
}

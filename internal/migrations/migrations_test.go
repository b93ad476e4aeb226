package migrations_test

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxbridge/internal/migrations"
)

func TestDriverURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/tax", migrations.DriverURL("postgres://u:p@db:5432/tax"))
	require.Equal(t, "pgx5://db/tax", migrations.DriverURL("postgresql://db/tax"))
	require.Equal(t, "pgx5://db/tax", migrations.DriverURL("pgx5://db/tax"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrations.FS(), ".")
	require.NoError(t, err)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	require.Equal(t, ups, downs)

	body, err := fs.ReadFile(migrations.FS(), "000002_orders.up.sql")
	require.NoError(t, err)
	require.Contains(t, string(body), "taxes_persisted_at")
}

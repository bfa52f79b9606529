package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations_Paired(t *testing.T) {
	for _, driver := range []string{MySQL, Postgres} {
		t.Run(driver, func(t *testing.T) {
			entries, err := fs.ReadDir(files, "sql/"+driver)
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
			assert.NotEmpty(t, ups)
			assert.Equal(t, ups, downs)

			src, err := iofs.New(files, "sql/"+driver)
			require.NoError(t, err)
			first, err := src.First()
			require.NoError(t, err)
			assert.Equal(t, uint(1), first)
			require.NoError(t, src.Close())
		})
	}
}

func TestEmbeddedMigrations_CreateEveryTable(t *testing.T) {
	for _, driver := range []string{MySQL, Postgres} {
		var all strings.Builder
		entries, err := fs.ReadDir(files, "sql/"+driver)
		require.NoError(t, err)
		for _, e := range entries {
			if !strings.HasSuffix(e.Name(), ".up.sql") {
				continue
			}
			b, err := fs.ReadFile(files, "sql/"+driver+"/"+e.Name())
			require.NoError(t, err)
			all.Write(b)
		}
		for _, table := range []string{"matches", "tournaments", "tournament_players", "tournament_matches"} {
			assert.Contains(t, all.String(), "CREATE TABLE IF NOT EXISTS "+table+" (", driver)
		}
	}
}

func TestUp_UnknownDriver(t *testing.T) {
	err := Up("sqlite", "file::memory:", zerolog.Nop())
	assert.Error(t, err)
}

func TestEmbeddedMigrations_UsernameColumnsMatchModels(t *testing.T) {
	for _, driver := range []string{MySQL, Postgres} {
		t.Run(driver, func(t *testing.T) {
			entries, err := fs.ReadDir(files, "sql/"+driver)
			require.NoError(t, err)

			seen := 0
			for _, e := range entries {
				if !strings.HasSuffix(e.Name(), ".up.sql") {
					continue
				}
				body, err := fs.ReadFile(files, "sql/"+driver+"/"+e.Name())
				require.NoError(t, err)
				for _, line := range strings.Split(string(body), "\n") {
					line = strings.ToUpper(strings.TrimSpace(line))
					if !strings.Contains(line, "USERNAME ") {
						continue
					}
					seen++
					assert.Contains(t, line, "VARCHAR(64)", "%s: %s", e.Name(), line)
				}
			}
			assert.NotZero(t, seen)
		})
	}
}

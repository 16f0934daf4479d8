package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratbox/pkg/db"
)

const seedYAML = `
strategies:
  - name: rsi-dip
    symbol: BTCUSDT
    interval: 5m
    source: |
      function tradingStrategy(ctx) {
        return { signal: 'hold' };
      }
    parameters:
      threshold: 30
  - name: always-hold
    symbol: ETHUSDT
    source: "function strategy(ctx){ return {signal:'hold'}; }"
`

func writeSeedFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))
	return path
}

func TestLoadParsesYAML(t *testing.T) {
	seeds, err := Load(writeSeedFile(t))
	require.NoError(t, err)
	require.Len(t, seeds, 2)

	assert.Equal(t, "rsi-dip", seeds[0].Name)
	assert.Equal(t, "5m", seeds[0].Interval)
	assert.Equal(t, 30, seeds[0].Parameters["threshold"])
	assert.Contains(t, seeds[0].Source, "tradingStrategy")

	assert.Equal(t, "always-hold", seeds[1].Name)
	assert.Empty(t, seeds[1].Interval)
}

func TestApplyIsIdempotent(t *testing.T) {
	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.ApplyMigrations(database))

	ctx := context.Background()
	require.NoError(t, database.CreateUser(ctx, db.User{ID: "u1", Email: "seed@test.local", PasswordHash: "x"}))

	seeds, err := Load(writeSeedFile(t))
	require.NoError(t, err)

	require.NoError(t, Apply(ctx, database, "u1", seeds))
	require.NoError(t, Apply(ctx, database, "u1", seeds))

	strategies, err := database.ListStrategiesByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, strategies, 2)

	byName := map[string]db.Strategy{}
	for _, s := range strategies {
		byName[s.Name] = s
	}
	assert.Equal(t, "5m", byName["rsi-dip"].Interval)
	// Missing interval falls back to the default cadence.
	assert.Equal(t, "1m", byName["always-hold"].Interval)
	assert.Equal(t, db.StrategyStopped, byName["rsi-dip"].Status)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

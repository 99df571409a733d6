package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg := Load()
	assert.Equal(t, []int{1, 3, 5}, cfg.BestOfValues)
	assert.Equal(t, 90*time.Second, cfg.AFKTimeout())
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout())
	assert.Equal(t, 8*time.Second, cfg.RevealInterval())
	assert.Equal(t, 5*time.Second, cfg.GuessLockout())
	assert.Equal(t, 72*time.Hour, cfg.ArchiveRetention())
	assert.Empty(t, cfg.Games)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
best_of_values: [1, 3]
afk_seconds: 45
games:
  lol:
    round_pool: [classic, whois]
    shuffle_rounds: true
    reveal_keys: [team, country]
    whois_questions:
      birth_year:
        type: number
        operators: [eq, gt]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pvp.yaml"), []byte(yaml), 0o644))
	chdir(t, dir)

	cfg := Load()
	assert.Equal(t, []int{1, 3}, cfg.BestOfValues)
	assert.Equal(t, 45*time.Second, cfg.AFKTimeout())
	// unset keys keep their defaults
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout())

	game, ok := cfg.Game("lol")
	require.True(t, ok)
	assert.Equal(t, []string{"classic", "whois"}, game.RoundPool)
	assert.True(t, game.ShuffleRounds)

	ops, ok := game.AllowedOperators("birth_year")
	require.True(t, ok)
	assert.Equal(t, []string{"eq", "gt"}, ops)

	_, ok = game.AllowedOperators("team")
	assert.False(t, ok)

	_, ok = cfg.Game("chess")
	assert.False(t, ok)
}

func TestValidBestOf(t *testing.T) {
	cfg := &PvpConfig{BestOfValues: []int{1, 3, 5}}
	assert.True(t, cfg.ValidBestOf(3))
	assert.False(t, cfg.ValidBestOf(2))
	assert.False(t, cfg.ValidBestOf(0))
}

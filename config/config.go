package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// QuestionMeta describes one whois question key: its value type and the
// operators a player may use with it.
type QuestionMeta struct {
	Type      string   `mapstructure:"type" json:"type"` // "string", "number" or "bool"
	Operators []string `mapstructure:"operators" json:"operators"`
}

// GameConfig holds the per-game round pool and hint-key allow-lists.
type GameConfig struct {
	RoundPool      []string                `mapstructure:"round_pool"`
	ShuffleRounds  bool                    `mapstructure:"shuffle_rounds"`
	DraftKeys      []string                `mapstructure:"draft_keys"`
	LockedInfoKeys []string                `mapstructure:"locked_info_keys"`
	RevealKeys     []string                `mapstructure:"reveal_keys"`
	WhoisQuestions map[string]QuestionMeta `mapstructure:"whois_questions"`
}

// PvpConfig is the injected configuration surface of the match engine.
type PvpConfig struct {
	BestOfValues          []int                 `mapstructure:"best_of_values"`
	AFKSeconds            int                   `mapstructure:"afk_seconds"`
	IdleSeconds           int                   `mapstructure:"idle_seconds"`
	RevealIntervalSeconds int                   `mapstructure:"reveal_interval_seconds"`
	GuessLockoutSeconds   int                   `mapstructure:"guess_lockout_seconds"`
	ArchiveAfterHours     int                   `mapstructure:"archive_after_hours"`
	Games                 map[string]GameConfig `mapstructure:"games"`
}

// Load reads pvp.yaml (working dir or ./config) with PVP_ env overrides.
func Load() *PvpConfig {
	v := viper.New()
	v.SetConfigName("pvp")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("PVP")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("Error reading pvp config: %v", err)
		}
		log.Println("⚠️  No pvp.yaml found, using defaults")
	}

	cfg := &PvpConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		log.Fatalf("Unable to decode pvp config: %v", err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("best_of_values", []int{1, 3, 5})
	v.SetDefault("afk_seconds", 90)
	v.SetDefault("idle_seconds", 300)
	v.SetDefault("reveal_interval_seconds", 8)
	v.SetDefault("guess_lockout_seconds", 5)
	v.SetDefault("archive_after_hours", 72)
}

// Game looks up a configured game.
func (c *PvpConfig) Game(id string) (GameConfig, bool) {
	g, ok := c.Games[id]
	return g, ok
}

// ValidBestOf reports whether n is an allowed best-of value.
func (c *PvpConfig) ValidBestOf(n int) bool {
	for _, v := range c.BestOfValues {
		if v == n {
			return true
		}
	}
	return false
}

func (c *PvpConfig) AFKTimeout() time.Duration {
	return time.Duration(c.AFKSeconds) * time.Second
}

func (c *PvpConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleSeconds) * time.Second
}

func (c *PvpConfig) RevealInterval() time.Duration {
	return time.Duration(c.RevealIntervalSeconds) * time.Second
}

func (c *PvpConfig) GuessLockout() time.Duration {
	return time.Duration(c.GuessLockoutSeconds) * time.Second
}

func (c *PvpConfig) ArchiveRetention() time.Duration {
	return time.Duration(c.ArchiveAfterHours) * time.Hour
}

// AllowedOperators returns the operator list for a whois question key.
func (g GameConfig) AllowedOperators(key string) ([]string, bool) {
	meta, ok := g.WhoisQuestions[key]
	if !ok {
		return nil, false
	}
	return meta.Operators, true
}

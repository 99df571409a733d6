package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pvp-match-system/config"
	"pvp-match-system/models"
)

// stubPool is an in-memory PlayerPoolService with a fixed roster.
type stubPool struct {
	random     string
	candidates []string
	profiles   map[string]map[string]string
}

func newStubPool() *stubPool {
	return &stubPool{
		random:     "faker",
		candidates: []string{"faker", "chovy", "caps", "ruler"},
		profiles: map[string]map[string]string{
			"faker": {"team": "T1", "country": "KR", "role": "mid", "birth_year": "1996", "league": "LCK", "retired": "false"},
			"chovy": {"team": "GenG", "country": "KR", "role": "mid", "birth_year": "2001", "league": "LCK", "retired": "false"},
			"caps":  {"team": "G2", "country": "DK", "role": "mid", "birth_year": "1999", "league": "LEC", "retired": "false"},
			"ruler": {"team": "JDG", "country": "KR", "role": "adc", "birth_year": "1998", "league": "LPL", "retired": "false"},
		},
	}
}

func (p *stubPool) RandomPlayerID(game string) (string, error) {
	return p.random, nil
}

func (p *stubPool) Candidates(game string) ([]string, error) {
	return append([]string(nil), p.candidates...), nil
}

func (p *stubPool) PlayerProfile(game, playerID string) (map[string]string, error) {
	profile, ok := p.profiles[playerID]
	if !ok {
		return nil, fmt.Errorf("unknown player %s", playerID)
	}
	return profile, nil
}

// stubCompare marks a guess correct when it matches the secret id.
type stubCompare struct{}

func (stubCompare) Compare(game, secretPlayerID, guessPlayerID string) (*ComparisonResult, error) {
	correct := guessPlayerID == secretPlayerID
	state := "wrong"
	if correct {
		state = "exact"
	}
	return &ComparisonResult{
		Correct: correct,
		Fields:  []FieldDelta{{Key: "team", GuessValue: guessPlayerID, State: state}},
	}, nil
}

func testPvpConfig() *config.PvpConfig {
	return &config.PvpConfig{
		BestOfValues:          []int{1, 3, 5},
		AFKSeconds:            90,
		IdleSeconds:           300,
		RevealIntervalSeconds: 8,
		GuessLockoutSeconds:   5,
		ArchiveAfterHours:     72,
		Games: map[string]config.GameConfig{
			"lol": {
				RoundPool:      []string{"classic", "classic", "classic", "classic", "classic"},
				DraftKeys:      []string{"team", "country", "role", "birth_year", "league"},
				LockedInfoKeys: []string{"team", "country", "role"},
				RevealKeys:     []string{"team", "country", "role", "birth_year"},
				WhoisQuestions: map[string]config.QuestionMeta{
					"country":    {Type: "string", Operators: []string{"eq", "neq"}},
					"birth_year": {Type: "number", Operators: []string{"eq", "neq", "gt", "gte", "lt", "lte"}},
					"retired":    {Type: "bool", Operators: []string{"eq"}},
				},
			},
		},
	}
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Match{},
		&models.MatchPlayer{},
		&models.MatchEvent{},
		&models.ActiveMatchLock{},
		&models.QueueEntry{},
		&models.Lobby{},
		&models.LobbyEvent{},
	))
	return db
}

// testStack wires the full service graph against sqlite and the stubs.
type testStack struct {
	db          *gorm.DB
	cfg         *config.PvpConfig
	pool        *stubPool
	events      *EventService
	lifecycle   *MatchLifecycleService
	engine      *MatchEngine
	matchmaking *MatchmakingService
	lobbies     *LobbyService
	heartbeat   *HeartbeatService
	sweep       *AfkSweepService
}

func newTestStack(t *testing.T, cfg *config.PvpConfig) *testStack {
	t.Helper()
	db := testDB(t)
	pool := newStubPool()
	secrets := NewSecretPlayerService(pool)
	hints := NewHintValueService(pool)
	factory := NewRoundHandlerFactory(cfg, secrets, hints, pool, stubCompare{})
	events := NewEventService(db)
	lifecycle := NewMatchLifecycleService(db, events)
	engine := NewMatchEngine(db, cfg, factory, events, lifecycle)
	return &testStack{
		db:          db,
		cfg:         cfg,
		pool:        pool,
		events:      events,
		lifecycle:   lifecycle,
		engine:      engine,
		matchmaking: NewMatchmakingService(db, cfg, events),
		lobbies:     NewLobbyService(db, cfg, events),
		heartbeat:   NewHeartbeatService(db, engine),
		sweep:       NewAfkSweepService(db, cfg, lifecycle),
	}
}

// pairUsers queues two users and returns the match id they were paired into.
func (s *testStack) pairUsers(t *testing.T, game string, bestOf int) string {
	t.Helper()
	out, err := s.matchmaking.JoinQueue("user-a", "Alice", game, bestOf)
	require.NoError(t, err)
	require.Equal(t, "queued", out["state"])
	out, err = s.matchmaking.JoinQueue("user-b", "Bob", game, bestOf)
	require.NoError(t, err)
	require.Equal(t, "matched", out["state"])
	return out["match_id"].(string)
}

func (s *testStack) loadMatch(t *testing.T, matchID string) *models.Match {
	t.Helper()
	var m models.Match
	require.NoError(t, s.db.Where("id = ?", matchID).First(&m).Error)
	return &m
}

func testPlayers() []models.MatchPlayer {
	return []models.MatchPlayer{
		{UserID: "user-a", Name: "Alice", Seat: 1},
		{UserID: "user-b", Name: "Bob", Seat: 2},
	}
}

func newTestMatch(roundType string) *models.Match {
	return &models.Match{
		ID:           "match-1",
		Game:         "lol",
		Status:       models.MatchStatusActive,
		BestOf:       3,
		CurrentRound: 1,
		Rounds:       models.StringList{roundType, roundType, roundType},
		State:        models.MatchState{RoundType: roundType},
	}
}

func requireFiberStatus(t *testing.T, err error, status int) {
	t.Helper()
	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, status, fe.Code)
}

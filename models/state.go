package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Match status values.
const (
	MatchStatusActive   = "active"
	MatchStatusFinished = "finished"
)

// Reasons a match can end.
const (
	EndedReasonPoints = "points"
	EndedReasonLeave  = "leave"
	EndedReasonAFK    = "afk"
)

// Round type identifiers.
const (
	RoundClassic     = "classic"
	RoundDraft       = "draft"
	RoundLockedInfos = "locked_infos"
	RoundRevealRace  = "reveal_race"
	RoundWhois       = "whois"
)

// MatchState is the per-match working document stored alongside the match
// row. It is only ever mutated inside the match's locked transaction.
type MatchState struct {
	Origin                string    `json:"origin,omitempty"` // "queue" or "lobby:<id>"
	RoundType             string    `json:"round_type,omitempty"`
	ChooserUserID         string    `json:"chooser_user_id,omitempty"`
	TurnUserID            string    `json:"turn_user_id,omitempty"`
	RoundInitialized      bool      `json:"round_initialized,omitempty"`
	LastRoundWinnerUserID string    `json:"last_round_winner_user_id,omitempty"`
	EndedReason           string    `json:"ended_reason,omitempty"`
	WinnerUserID          string    `json:"winner_user_id,omitempty"`
	Data                  RoundData `json:"round_data"`
}

// RoundData holds the current round's private working state. Exactly one
// variant is non-nil while a round is initialized; the whole struct is reset
// when the match advances to the next round.
type RoundData struct {
	Classic     *GuessRoundData  `json:"classic,omitempty"`
	Draft       *DraftRoundData  `json:"draft,omitempty"`
	LockedInfos *LockedInfosData `json:"locked_infos,omitempty"`
	RevealRace  *RevealRaceData  `json:"reveal_race,omitempty"`
	Whois       *WhoisRoundData  `json:"whois,omitempty"`
}

// PlayerGuess is one submitted guess with the comparison hints returned to
// the guesser.
type PlayerGuess struct {
	PlayerID string         `json:"player_id"`
	Correct  bool           `json:"correct"`
	Hints    map[string]any `json:"hints,omitempty"`
	At       time.Time      `json:"at"`
}

// GuessState is the per-player bookkeeping shared by every guess-phase
// round type.
type GuessState struct {
	StartedAt  time.Time     `json:"started_at"`
	SolvedAt   *time.Time    `json:"solved_at,omitempty"`
	GuessCount int           `json:"guess_count"`
	Guesses    []PlayerGuess `json:"guesses"`
}

// GuessRoundData backs the classic round: secret plus both players'
// simultaneous guess state.
type GuessRoundData struct {
	SecretPlayerID string                 `json:"secret_player_id"`
	Players        map[string]*GuessState `json:"players"`
}

// Draft phases.
const (
	DraftPhaseChooseOrder = "choose_order"
	DraftPhaseDraft       = "draft"
	DraftPhaseGuess       = "guess"
)

// DraftRoundData backs the draft round: the snake pick plan, the revealed
// hint values and the trailing guess phase.
type DraftRoundData struct {
	SecretPlayerID string                 `json:"secret_player_id"`
	Phase          string                 `json:"phase"`
	PickOrder      []string               `json:"pick_order,omitempty"` // snake: [A,B,B,A]
	PickIndex      int                    `json:"pick_index"`
	PickedKeys     []string               `json:"picked_keys,omitempty"`
	Revealed       map[string]string      `json:"revealed,omitempty"`
	Players        map[string]*GuessState `json:"players,omitempty"`
}

// LockedInfosData backs the locked_infos round: two keys revealed up front,
// then a plain guess phase.
type LockedInfosData struct {
	SecretPlayerID string                 `json:"secret_player_id"`
	RevealedKeys   []string               `json:"revealed_keys"`
	Revealed       map[string]string      `json:"revealed"`
	Players        map[string]*GuessState `json:"players"`
}

// RevealRaceData backs the reveal_race round. The reveal schedule is derived
// from StartedAt on every read, never from a running timer.
type RevealRaceData struct {
	SecretPlayerID string                 `json:"secret_player_id"`
	StartedAt      time.Time              `json:"started_at"`
	RevealKeys     []string               `json:"reveal_keys"`
	RevealedCount  int                    `json:"revealed_count"`
	Revealed       map[string]string      `json:"revealed"`
	LockedUntil    map[string]time.Time   `json:"locked_until,omitempty"`
	Players        map[string]*GuessState `json:"players"`
}

// Whois phases.
const (
	WhoisPhaseChooseTurn = "choose_turn"
	WhoisPhasePlay       = "play"
)

// WhoisQuestion records one asked predicate and its answer.
type WhoisQuestion struct {
	AskerUserID string    `json:"asker_user_id"`
	Key         string    `json:"key"`
	Operator    string    `json:"operator"`
	Value       string    `json:"value"`
	Answer      bool      `json:"answer"`
	Remaining   int       `json:"remaining"`
	At          time.Time `json:"at"`
}

// WhoisRoundData backs the whois round: a shrinking candidate pool and the
// question history.
type WhoisRoundData struct {
	SecretPlayerID string          `json:"secret_player_id"`
	Phase          string          `json:"phase"`
	Candidates     []string        `json:"candidates"`
	Asked          []WhoisQuestion `json:"asked,omitempty"`
	WrongGuesses   []string        `json:"wrong_guesses,omitempty"`
}

func (s MatchState) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	return string(b), err
}

func (s *MatchState) Scan(value any) error {
	return scanJSON(value, s)
}

// StringList is a JSON-encoded string slice column (the ordered round
// sequence of a match).
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *StringList) Scan(value any) error {
	return scanJSON(value, l)
}

// JSONMap is a JSON object column used for event payloads.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		m = JSONMap{}
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *JSONMap) Scan(value any) error {
	return scanJSON(value, m)
}

func scanJSON(value, dest any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}

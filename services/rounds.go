package services

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"pvp-match-system/config"
	"pvp-match-system/models"
)

// Action is a client round action. Type selects the operation; the other
// fields are per-type.
type Action struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id,omitempty"` // guess target
	Key      string `json:"key,omitempty"`       // draft pick / whois question key
	Operator string `json:"operator,omitempty"`  // whois question operator
	Value    string `json:"value,omitempty"`     // whois question value
	UserID   string `json:"user_id,omitempty"`   // chooser decisions
}

// Round action types.
const (
	ActionGuess             = "guess"
	ActionChooseFirstPicker = "choose_first_picker"
	ActionPickKey           = "pick_key"
	ActionChooseFirstTurn   = "choose_first_turn"
	ActionAsk               = "ask"
)

// EventDraft is an event a handler wants emitted once the transaction
// commits the state change.
type EventDraft struct {
	UserID  string
	Type    string
	Payload models.JSONMap
}

// ActionResult is what a handler reports back to the engine.
type ActionResult struct {
	RoundEnded   bool
	WinnerUserID string
	Events       []EventDraft
}

// RoundHandler is the capability contract each round type implements. A
// handler owns the rules of its round; the engine owns locking, idempotent
// initialization, chooser selection and round/match progression.
type RoundHandler interface {
	Type() string
	// Initialize sets up the round's working state. The engine guarantees
	// it runs exactly once per round index.
	Initialize(m *models.Match, players []models.MatchPlayer, now time.Time) error
	// PublicState renders the round for one participant. It must never
	// reveal the secret or the opponent's guess list.
	PublicState(m *models.Match, userID string, now time.Time) fiber.Map
	HandleAction(m *models.Match, players []models.MatchPlayer, userID string, action Action, now time.Time) (*ActionResult, error)
}

// Ticker is implemented by time-driven rounds. Tick advances state derived
// from persisted timestamps; it runs under the match lock on every read.
type Ticker interface {
	Tick(m *models.Match, now time.Time) (bool, []EventDraft, error)
}

// TurnBased is implemented by rounds where only one participant may act at
// a time. The AFK sweep limits idle forfeits to the participant on turn.
type TurnBased interface {
	IsTurnBased() bool
}

// RoundHandlerFactory resolves handlers by round-type identifier.
type RoundHandlerFactory struct {
	handlers map[string]RoundHandler
}

func NewRoundHandlerFactory(cfg *config.PvpConfig, secrets *SecretPlayerService, hints *HintValueService, pool PlayerPoolService, compare PlayerCompareService) *RoundHandlerFactory {
	f := &RoundHandlerFactory{handlers: map[string]RoundHandler{}}
	tb := TieBreakerService{}
	for _, h := range []RoundHandler{
		NewClassicRound(secrets, compare, tb),
		NewDraftRound(cfg, secrets, hints, compare, tb),
		NewLockedInfosRound(cfg, secrets, hints, compare, tb),
		NewRevealRaceRound(cfg, secrets, hints, compare),
		NewWhoisRound(cfg, secrets, pool),
	} {
		f.handlers[h.Type()] = h
	}
	return f
}

// Handler returns the handler for a round type. An unknown type is a broken
// invariant, not a client error.
func (f *RoundHandlerFactory) Handler(roundType string) (RoundHandler, error) {
	h, ok := f.handlers[roundType]
	if !ok {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "unknown round type: "+roundType)
	}
	return h, nil
}

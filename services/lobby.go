package services

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"pvp-match-system/config"
	"pvp-match-system/models"
	"pvp-match-system/utils"
)

// LobbyService manages private invite-code matches.
type LobbyService struct {
	DB     *gorm.DB
	Cfg    *config.PvpConfig
	Events *EventService
}

func NewLobbyService(db *gorm.DB, cfg *config.PvpConfig, events *EventService) *LobbyService {
	return &LobbyService{DB: db, Cfg: cfg, Events: events}
}

// CreateLobby opens a new lobby for the host, closing any prior open lobby
// they own first.
func (s *LobbyService) CreateLobby(userID, userName, game string, bestOf int) (fiber.Map, error) {
	if _, ok := s.Cfg.Game(game); !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "unknown game: "+game)
	}
	if !s.Cfg.ValidBestOf(bestOf) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid best_of value")
	}

	var lobby *models.Lobby
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var lock models.ActiveMatchLock
		if err := tx.Where("user_id = ?", userID).First(&lock).Error; err == nil {
			return fiber.NewError(fiber.StatusConflict, "you already have an active match")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var guestOf models.Lobby
		if err := tx.Where("guest_user_id = ? AND status = ?", userID, models.LobbyStatusOpen).
			First(&guestOf).Error; err == nil {
			return fiber.NewError(fiber.StatusConflict, "you are already in an open lobby")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// a host re-creating a lobby implicitly abandons the previous one
		var stale []models.Lobby
		if err := forUpdate(tx).
			Where("host_user_id = ? AND status = ?", userID, models.LobbyStatusOpen).
			Find(&stale).Error; err != nil {
			return err
		}
		for _, l := range stale {
			if err := tx.Model(&models.Lobby{}).Where("id = ?", l.ID).
				Update("status", models.LobbyStatusClosed).Error; err != nil {
				return err
			}
			if err := s.Events.EmitLobby(tx, l.ID, userID, "lobby_closed", nil); err != nil {
				return err
			}
		}

		code, err := s.uniqueCode(tx)
		if err != nil {
			return err
		}
		l := models.Lobby{
			ID:         uuid.NewString(),
			Code:       code,
			Game:       game,
			BestOf:     bestOf,
			Status:     models.LobbyStatusOpen,
			HostUserID: userID,
			HostName:   userName,
		}
		if err := tx.Create(&l).Error; err != nil {
			return err
		}
		if err := s.Events.EmitLobby(tx, l.ID, userID, "lobby_created", models.JSONMap{
			"game":    game,
			"best_of": bestOf,
		}); err != nil {
			return err
		}
		lobby = &l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.lobbyPayload(lobby), nil
}

func (s *LobbyService) uniqueCode(tx *gorm.DB) (string, error) {
	for i := 0; i < 5; i++ {
		code := utils.LobbyCode()
		var count int64
		if err := tx.Model(&models.Lobby{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", fiber.NewError(fiber.StatusInternalServerError, "failed to generate a unique lobby code")
}

// JoinLobby puts the user in the guest slot of an open lobby.
func (s *LobbyService) JoinLobby(userID, userName, code string) (fiber.Map, error) {
	var lobby *models.Lobby
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		l, err := s.lockLobbyByCode(tx, code)
		if err != nil {
			return err
		}
		if l.Status != models.LobbyStatusOpen {
			return fiber.NewError(fiber.StatusConflict, "lobby is not open")
		}
		if l.HostUserID == userID {
			return fiber.NewError(fiber.StatusConflict, "you are the host of this lobby")
		}

		var lock models.ActiveMatchLock
		if err := tx.Where("user_id = ?", userID).First(&lock).Error; err == nil {
			return fiber.NewError(fiber.StatusConflict, "you already have an active match")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var other models.Lobby
		if err := tx.Where("(host_user_id = ? OR guest_user_id = ?) AND status = ? AND id <> ?",
			userID, userID, models.LobbyStatusOpen, l.ID).First(&other).Error; err == nil {
			return fiber.NewError(fiber.StatusConflict, "you are already in another open lobby")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if l.GuestUserID != "" && l.GuestUserID != userID {
			return fiber.NewError(fiber.StatusConflict, "lobby is full")
		}

		l.GuestUserID = userID
		l.GuestName = userName
		if err := tx.Save(l).Error; err != nil {
			return err
		}
		if err := s.Events.EmitLobby(tx, l.ID, userID, "lobby_joined", models.JSONMap{
			"user_id": userID,
			"name":    userName,
		}); err != nil {
			return err
		}
		lobby = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.lobbyPayload(lobby), nil
}

// LeaveLobby frees the guest slot. The host cannot leave; they close.
func (s *LobbyService) LeaveLobby(userID, lobbyID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		l, err := s.lockLobby(tx, lobbyID)
		if err != nil {
			return err
		}
		if l.Status != models.LobbyStatusOpen {
			return fiber.NewError(fiber.StatusConflict, "lobby is not open")
		}
		if l.HostUserID == userID {
			return fiber.NewError(fiber.StatusForbidden, "the host must close the lobby instead")
		}
		if l.GuestUserID != userID {
			return fiber.NewError(fiber.StatusForbidden, "you are not in this lobby")
		}

		l.GuestUserID = ""
		l.GuestName = ""
		if err := tx.Save(l).Error; err != nil {
			return err
		}
		return s.Events.EmitLobby(tx, l.ID, userID, "lobby_left", models.JSONMap{
			"user_id": userID,
		})
	})
}

// CloseLobby closes an open lobby; host only.
func (s *LobbyService) CloseLobby(userID, lobbyID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		l, err := s.lockLobby(tx, lobbyID)
		if err != nil {
			return err
		}
		if l.HostUserID != userID {
			return fiber.NewError(fiber.StatusForbidden, "only the host may close the lobby")
		}
		if l.Status != models.LobbyStatusOpen {
			return fiber.NewError(fiber.StatusConflict, "lobby is not open")
		}

		l.Status = models.LobbyStatusClosed
		if err := tx.Save(l).Error; err != nil {
			return err
		}
		return s.Events.EmitLobby(tx, l.ID, userID, "lobby_closed", nil)
	})
}

// StartLobby builds the match exactly as matchmaking does and links it to
// the lobby.
func (s *LobbyService) StartLobby(userID, lobbyID string) (fiber.Map, error) {
	var match *models.Match
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		l, err := s.lockLobby(tx, lobbyID)
		if err != nil {
			return err
		}
		if l.HostUserID != userID {
			return fiber.NewError(fiber.StatusForbidden, "only the host may start the lobby")
		}
		if l.Status != models.LobbyStatusOpen {
			return fiber.NewError(fiber.StatusConflict, "lobby is not open")
		}
		if l.GuestUserID == "" {
			return fiber.NewError(fiber.StatusConflict, "lobby has no guest yet")
		}
		for _, id := range []string{l.HostUserID, l.GuestUserID} {
			var lock models.ActiveMatchLock
			if err := tx.Where("user_id = ?", id).First(&lock).Error; err == nil {
				return fiber.NewError(fiber.StatusConflict, "a participant already has an active match")
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		m, err := createMatchTx(tx, s.Cfg, s.Events, l.Game, l.BestOf, [2]matchSeat{
			{UserID: l.HostUserID, Name: l.HostName},
			{UserID: l.GuestUserID, Name: l.GuestName},
		}, "lobby:"+l.ID)
		if err != nil {
			return err
		}

		l.Status = models.LobbyStatusStarted
		l.MatchID = m.ID
		if err := tx.Save(l).Error; err != nil {
			return err
		}
		if err := s.Events.EmitLobby(tx, l.ID, userID, "lobby_closed", nil); err != nil {
			return err
		}
		if err := s.Events.EmitLobby(tx, l.ID, userID, "match_started", models.JSONMap{
			"match_id": m.ID,
		}); err != nil {
			return err
		}
		match = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fiber.Map{"match_id": match.ID}, nil
}

func (s *LobbyService) lockLobby(tx *gorm.DB, lobbyID string) (*models.Lobby, error) {
	var l models.Lobby
	if err := forUpdate(tx).Where("id = ?", lobbyID).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "lobby not found")
		}
		return nil, err
	}
	return &l, nil
}

func (s *LobbyService) lockLobbyByCode(tx *gorm.DB, code string) (*models.Lobby, error) {
	var l models.Lobby
	if err := forUpdate(tx).Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "lobby not found")
		}
		return nil, err
	}
	return &l, nil
}

func (s *LobbyService) lobbyPayload(l *models.Lobby) fiber.Map {
	return fiber.Map{
		"id":            l.ID,
		"code":          l.Code,
		"game":          l.Game,
		"best_of":       l.BestOf,
		"status":        l.Status,
		"host_user_id":  l.HostUserID,
		"host_name":     l.HostName,
		"guest_user_id": l.GuestUserID,
		"guest_name":    l.GuestName,
		"match_id":      l.MatchID,
	}
}

// CreateLobbyHandler handles POST /pvp/lobbies
func (s *LobbyService) CreateLobbyHandler(c *fiber.Ctx) error {
	var req struct {
		Game   string `json:"game"`
		BestOf int    `json:"best_of"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON: "+err.Error())
	}
	out, err := s.CreateLobby(c.Locals("user_id").(string), userName(c), req.Game, req.BestOf)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// MyLobbyHandler handles GET /pvp/lobbies/me
func (s *LobbyService) MyLobbyHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	var l models.Lobby
	err := s.DB.Where("(host_user_id = ? OR guest_user_id = ?) AND status = ?",
		userID, userID, models.LobbyStatusOpen).First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"state": "none"})
		}
		return err
	}
	return c.JSON(s.lobbyPayload(&l))
}

// GetByCodeHandler handles GET /pvp/lobbies/code/:code
func (s *LobbyService) GetByCodeHandler(c *fiber.Ctx) error {
	l, err := s.lockLobbyByCode(s.DB, c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(s.lobbyPayload(l))
}

// PeekLobbyHandler handles GET /pvp/lobbies/code/:code/peek without auth;
// it exposes only what an invitee needs before logging in.
func (s *LobbyService) PeekLobbyHandler(c *fiber.Ctx) error {
	l, err := s.lockLobbyByCode(s.DB, c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"game":      l.Game,
		"best_of":   l.BestOf,
		"status":    l.Status,
		"host_name": l.HostName,
		"has_guest": l.GuestUserID != "",
	})
}

// JoinLobbyHandler handles POST /pvp/lobbies/code/:code/join
func (s *LobbyService) JoinLobbyHandler(c *fiber.Ctx) error {
	out, err := s.JoinLobby(c.Locals("user_id").(string), userName(c), c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// LeaveLobbyHandler handles POST /pvp/lobbies/:id/leave
func (s *LobbyService) LeaveLobbyHandler(c *fiber.Ctx) error {
	if err := s.LeaveLobby(c.Locals("user_id").(string), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "left lobby"})
}

// CloseLobbyHandler handles POST /pvp/lobbies/:id/close
func (s *LobbyService) CloseLobbyHandler(c *fiber.Ctx) error {
	if err := s.CloseLobby(c.Locals("user_id").(string), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "lobby closed"})
}

// StartLobbyHandler handles POST /pvp/lobbies/:id/start
func (s *LobbyService) StartLobbyHandler(c *fiber.Ctx) error {
	out, err := s.StartLobby(c.Locals("user_id").(string), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// LobbyEventsHandler handles GET /pvp/lobbies/:id/events
func (s *LobbyService) LobbyEventsHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	var l models.Lobby
	if err := s.DB.Where("id = ?", c.Params("id")).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "lobby not found")
		}
		return err
	}
	if l.HostUserID != userID && l.GuestUserID != userID {
		return fiber.NewError(fiber.StatusForbidden, "you are not in this lobby")
	}

	afterID, limit, err := cursorParams(c)
	if err != nil {
		return err
	}
	events, lastID, err := s.Events.FetchLobbyAfter(l.ID, afterID, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"events":  events,
		"last_id": lastID,
	})
}

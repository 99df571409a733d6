package handlers

import (
	"pvp-match-system/middleware"
	"pvp-match-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPvpRoutes(
	app *fiber.App,
	engine *services.MatchEngine,
	matchmaking *services.MatchmakingService,
	lobbies *services.LobbyService,
	lifecycle *services.MatchLifecycleService,
	heartbeat *services.HeartbeatService,
) {
	// 🔓 Public preview for invite links (no user context required)
	app.Get("/pvp/lobbies/code/:code/peek", lobbies.PeekLobbyHandler)

	// 🔐 Everything else requires the Gateway-injected user context
	secured := app.Group("/pvp", middleware.UserContextMiddleware())

	// Queue
	secured.Post("/games/:game/queue/join", matchmaking.JoinQueueHandler)
	secured.Post("/games/:game/queue/leave", matchmaking.LeaveQueueHandler)
	secured.Get("/resume", matchmaking.ResumeHandler)

	// Lobbies
	secured.Post("/lobbies", lobbies.CreateLobbyHandler)
	secured.Get("/lobbies/me", lobbies.MyLobbyHandler)
	secured.Get("/lobbies/code/:code", lobbies.GetByCodeHandler)
	secured.Post("/lobbies/code/:code/join", lobbies.JoinLobbyHandler)
	secured.Post("/lobbies/:id/leave", lobbies.LeaveLobbyHandler)
	secured.Post("/lobbies/:id/close", lobbies.CloseLobbyHandler)
	secured.Post("/lobbies/:id/start", lobbies.StartLobbyHandler)
	secured.Get("/lobbies/:id/events", lobbies.LobbyEventsHandler)

	// Matches
	secured.Get("/matches/:id", engine.GetMatchHandler)
	secured.Get("/matches/:id/round", engine.GetRoundHandler)
	secured.Post("/matches/:id/round/action", engine.RoundActionHandler)
	secured.Post("/matches/:id/leave", lifecycle.LeaveMatchHandler)
	secured.Post("/matches/:id/heartbeat", heartbeat.HeartbeatHandler)
	secured.Get("/matches/:id/events", engine.MatchEventsHandler)
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pvp-match-system/config"
	"pvp-match-system/handlers"
	"pvp-match-system/middleware"
	"pvp-match-system/models"
	"pvp-match-system/services"
	"pvp-match-system/utils"
	"pvp-match-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Name",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Match{},
		&models.MatchPlayer{},
		&models.MatchEvent{},
		&models.ActiveMatchLock{},
		&models.QueueEntry{},
		&models.Lobby{},
		&models.LobbyEvent{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	cfg := config.Load()

	// --- External DLE data service (player pool + comparison) ---
	dleServiceURL := os.Getenv("DLE_SERVICE_URL")
	if dleServiceURL == "" {
		log.Fatal("DLE_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("PVP_SERVICE_TOKEN")
	dleClient := services.NewDleServiceClient(dleServiceURL, serviceToken)

	secrets := services.NewSecretPlayerService(dleClient)
	hints := services.NewHintValueService(dleClient)
	factory := services.NewRoundHandlerFactory(cfg, secrets, hints, dleClient, dleClient)

	events := services.NewEventService(db)
	lifecycle := services.NewMatchLifecycleService(db, events)
	engine := services.NewMatchEngine(db, cfg, factory, events, lifecycle)
	matchmaking := services.NewMatchmakingService(db, cfg, events)
	lobbies := services.NewLobbyService(db, cfg, events)
	heartbeat := services.NewHeartbeatService(db, engine)
	afkSweep := services.NewAfkSweepService(db, cfg, lifecycle)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	afkSweep.StartScheduler()

	// --- Finished-match archival to R2 ---
	storage, err := utils.NewR2Storage()
	if err != nil {
		log.Fatal("failed to initialize R2 client: ", err)
	}
	archiver := workers.NewMatchArchiveWorker(db, storage, cfg.ArchiveRetention())
	go workers.PollFinishedMatches(ctx, archiver, 10*time.Minute)

	handlers.SetupPvpRoutes(app, engine, matchmaking, lobbies, lifecycle, heartbeat)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ AFK sweep running (every 1m)")
	log.Println("✅ Match archive worker running (every 10m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}

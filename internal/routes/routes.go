package routes

import (
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/config"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/handlers"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/middleware"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/repository"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/services"
	chatws "github.com/Gokhangurbuz92/sami-app-sub000/internal/websocket"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Dependencies are the long lived pieces owned by main. Push may be nil when
// the job queue is disabled.
type Dependencies struct {
	Pool *pgxpool.Pool
	Hub  *chatws.Hub
	Push services.PushEnqueuer
}

// Services is the wired application layer. main also uses Auth to seed the
// bootstrap admin.
type Services struct {
	Auth         *services.AuthService
	Admin        *services.AdminService
	Chat         *services.ChatService
	Appointments *services.AppointmentService
	Notes        *services.NoteService
	Profiles     *services.ProfileService
	PushTokens   *services.PushTokenService
}

func BuildServices(cfg *config.Config, deps Dependencies) *Services {
	txRunner := repository.NewTxRunner(deps.Pool)
	userRepo := repository.NewUserRepository(deps.Pool)
	conversationRepo := repository.NewConversationRepository(deps.Pool)
	messageRepo := repository.NewMessageRepository(deps.Pool)
	appointmentRepo := repository.NewAppointmentRepository(deps.Pool)
	noteRepo := repository.NewNoteRepository(deps.Pool)
	pushTokenRepo := repository.NewPushTokenRepository(deps.Pool)

	var storageService services.StorageService
	if cfg.StorageConfigured() {
		storageService = services.NewSupabaseStorageService(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey)
	} else {
		log.Warn().Msg("object storage not configured; uploads are disabled")
	}

	var translator services.Translator
	if cfg.TranslateURL != "" {
		translator = services.NewLibreTranslateClient(cfg.TranslateURL, cfg.TranslateAPIKey)
	}

	chatService := services.NewChatService(services.ChatDependencies{
		Tx:            txRunner,
		Users:         userRepo,
		Conversations: conversationRepo,
		Messages:      messageRepo,
		Events:        deps.Hub,
		Push:          deps.Push,
		Translator:    translator,
		Storage:       storageService,
		Limiter:       services.NewSendLimiter(cfg.SendRatePerSecond, cfg.SendBurst),
	})

	return &Services{
		Auth:         services.NewAuthService(userRepo, cfg.JWTSecret),
		Admin:        services.NewAdminService(userRepo),
		Chat:         chatService,
		Appointments: services.NewAppointmentService(txRunner, appointmentRepo, userRepo),
		Notes:        services.NewNoteService(noteRepo, userRepo),
		Profiles:     services.NewProfileService(userRepo, storageService),
		PushTokens:   services.NewPushTokenService(pushTokenRepo),
	}
}

func RegisterRoutes(app *fiber.App, cfg *config.Config, svc *Services) {
	authHandler := handlers.NewAuthHandler(svc.Auth)
	adminHandler := handlers.NewAdminHandler(svc.Admin)
	chatHandler := handlers.NewChatHandler(svc.Chat, cfg.JWTSecret)
	appointmentHandler := handlers.NewAppointmentHandler(svc.Appointments)
	noteHandler := handlers.NewNoteHandler(svc.Notes)
	profileHandler := handlers.NewProfileHandler(svc.Profiles)
	pushTokenHandler := handlers.NewPushTokenHandler(svc.PushTokens)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	// Registered before the /v1 group so the upgrade request is authenticated
	// from the query token instead of the Authorization header.
	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	admin := authProtected.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.Get("/users", adminHandler.ListUsers)
	admin.Get("/users/:id", adminHandler.GetUser)
	admin.Post("/assignments", adminHandler.Assign)
	admin.Delete("/assignments", adminHandler.Unassign)

	conversations := authProtected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.CreateConversation)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)

	messages := authProtected.Group("/messages")
	messages.Post("/:id/reactions", chatHandler.ToggleReaction)
	messages.Post("/:id/translate", chatHandler.TranslateMessage)

	authProtected.Get("/unread-count", chatHandler.UnreadCount)
	authProtected.Post("/attachments", chatHandler.UploadAttachment)

	appointments := authProtected.Group("/appointments")
	appointments.Post("", middleware.RequireRole(models.RoleYouth, models.RoleReferent, models.RoleCoReferent), appointmentHandler.ScheduleAppointment)
	appointments.Get("", appointmentHandler.ListAppointments)
	appointments.Get("/:id", appointmentHandler.GetAppointment)
	appointments.Put("/:id/status", appointmentHandler.UpdateStatus)

	notes := authProtected.Group("/notes")
	notes.Post("", noteHandler.CreateNote)
	notes.Get("", noteHandler.ListNotes)
	notes.Get("/:id", noteHandler.GetNote)
	notes.Put("/:id", noteHandler.UpdateNote)
	notes.Delete("/:id", noteHandler.DeleteNote)

	profile := authProtected.Group("/profile")
	profile.Get("", profileHandler.GetProfile)
	profile.Put("", profileHandler.UpdateProfile)
	profile.Post("/avatar", profileHandler.UploadAvatar)

	authProtected.Post("/push-tokens", pushTokenHandler.Register)
}

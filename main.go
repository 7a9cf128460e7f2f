package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"school-chat-service/internal/auth"
	"school-chat-service/internal/config"
	"school-chat-service/internal/db"
	"school-chat-service/internal/handlers"
	"school-chat-service/internal/middleware"
	"school-chat-service/internal/models"
	"school-chat-service/internal/observability"
	"school-chat-service/internal/rabbitmq"
	"school-chat-service/internal/repositories"
	"school-chat-service/internal/telemetry"
	"school-chat-service/internal/uploads"
)

const serviceName = "school-chat-service"

func main() {
	cfg := config.Load()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	admins, err := config.LoadAdminStore(cfg.AdminCredentialsFile)
	if err != nil {
		log.Fatalf("failed to load admin credentials: %v", err)
	}

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "audit.school_chat", serviceName, cfg.Environment)

	userRepo := repositories.NewUserRepo(database)
	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	settingsRepo := repositories.NewSettingsRepo(database)

	sessions := auth.NewManager(cfg.SessionSecret, cfg.SessionTTL)
	uploadStore := uploads.NewStore(cfg.UploadDir)

	authHandler := handlers.NewAuthHandler(userRepo, settingsRepo, sessions, admins, audit)
	chatHandler := handlers.NewChatHandler(roomRepo, messageRepo, userRepo, settingsRepo, uploadStore)
	adminHandler := handlers.NewAdminHandler(userRepo, settingsRepo, audit)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	requireSession := middleware.RequireSession(sessions)
	requireActive := middleware.RequireActiveAccount(userRepo)
	requireAdmin := middleware.RequireRole(models.RoleAdmin)

	router.GET("/login", authHandler.LoginPage)
	router.POST("/login", authHandler.Login)
	router.GET("/register", authHandler.RegisterPage)
	router.POST("/register", authHandler.Register)
	router.POST("/forgot_password", authHandler.ForgotPassword)
	router.POST("/update_password", authHandler.UpdatePassword)
	router.POST("/admin/login", authHandler.AdminLogin)
	router.GET("/logout", authHandler.Logout)

	router.GET("/chat", requireSession, requireActive, chatHandler.ChatPage)
	router.GET("/get_online_users", requireSession, requireActive, chatHandler.OnlineUsers)
	router.POST("/send_message", requireSession, requireActive, chatHandler.SendMessage)
	router.GET("/get_messages/:room", requireSession, requireActive, chatHandler.GetMessages)
	router.GET("/search_messages", requireSession, requireActive, chatHandler.SearchMessages)
	router.GET("/user_settings", requireSession, requireActive, chatHandler.GetSettings)
	router.POST("/user_settings", requireSession, requireActive, chatHandler.SaveSettings)

	router.GET("/admin/users", requireSession, requireActive, requireAdmin, adminHandler.ListUsers)
	router.GET("/admin/approve_user/:id", requireSession, requireActive, requireAdmin, adminHandler.ApproveUser)
	router.GET("/admin/reject_user/:id", requireSession, requireActive, requireAdmin, adminHandler.RejectUser)
	router.GET("/admin/ban_user/:id", requireSession, requireActive, requireAdmin, adminHandler.BanUserForm)
	router.POST("/admin/ban_user/:id", requireSession, requireActive, requireAdmin, adminHandler.BanUser)
	router.GET("/admin/unban_user/:id", requireSession, requireActive, requireAdmin, adminHandler.UnbanUser)

	router.Static("/static/uploads", cfg.UploadDir)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"kouden_app/internal/handlers"
	authMiddleware "kouden_app/internal/middleware"
	"kouden_app/internal/models"
	"kouden_app/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Firebase
	authClient, err := services.InitFirebase()
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Auth features will not work until valid credentials are provided")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Redis is optional: summaries and postal lookups just skip
	// caching without it.
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		}
	}

	// Services
	allocationService := services.NewAllocationService(db)
	lockService := services.NewEntryLockService(db)
	statsService := services.NewStatsService(db, cache)
	postalService := services.NewPostalService(cache)
	emailService := services.NewEmailService()
	midtransService := services.NewMidtransService()
	paymentService := services.NewPaymentService(db, midtransService)

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Handlers
	authHandler := handlers.NewAuthHandler(authClient)
	koudenHandler := handlers.NewKoudenHandler(db)
	entryHandler := handlers.NewEntryHandler(db, lockService, statsService)
	offeringHandler := handlers.NewOfferingHandler(db, allocationService, statsService)
	memberHandler := handlers.NewMemberHandler(db, emailService)
	telegramHandler := handlers.NewTelegramHandler(db)
	returnHandler := handlers.NewReturnHandler(db)
	statsHandler := handlers.NewStatsHandler(statsService, allocationService, postalService)
	billingHandler := handlers.NewBillingHandler(db, midtransService, paymentService)

	// Public routes
	e.POST("/auth/login", authHandler.HandleLogin)
	e.POST("/auth/logout", authHandler.HandleLogout)
	e.POST("/billing/notification", billingHandler.HandleNotification)

	// Authenticated routes
	api := e.Group("/api")
	api.Use(authMiddleware.RequireAuth(authClient, db))

	api.GET("/koudens", koudenHandler.ListKouden)
	api.POST("/koudens", koudenHandler.StoreKouden)
	api.GET("/postal/:zip", statsHandler.PostalLookup)
	api.POST("/invitations/:token/accept", memberHandler.AcceptInvitation)

	api.GET("/plans", billingHandler.ListPlans)
	api.POST("/billing/checkout", billingHandler.Checkout)
	api.GET("/billing/subscriptions", billingHandler.MySubscriptions)

	// Per-ledger routes, role-gated
	registerKoudenRoutes(api, db, koudenHandler, entryHandler, offeringHandler, memberHandler, telegramHandler, returnHandler, statsHandler)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}

func registerKoudenRoutes(
	api *echo.Group,
	db *gorm.DB,
	koudenHandler *handlers.KoudenHandler,
	entryHandler *handlers.EntryHandler,
	offeringHandler *handlers.OfferingHandler,
	memberHandler *handlers.MemberHandler,
	telegramHandler *handlers.TelegramHandler,
	returnHandler *handlers.ReturnHandler,
	statsHandler *handlers.StatsHandler,
) {
	viewer := api.Group("/koudens/:koudenId", authMiddleware.RequireKoudenRole(db, models.MemberRoleViewer))
	editor := api.Group("/koudens/:koudenId", authMiddleware.RequireKoudenRole(db, models.MemberRoleEditor))
	owner := api.Group("/koudens/:koudenId", authMiddleware.RequireKoudenRole(db, models.MemberRoleOwner))

	// Read access
	viewer.GET("", koudenHandler.GetKouden)
	viewer.GET("/entries", entryHandler.ListEntries)
	viewer.GET("/entries/:id", entryHandler.GetEntry)
	viewer.GET("/entries/:id/lock", entryHandler.LockStatus)
	viewer.GET("/entries/:id/total", statsHandler.EntryTotal)
	viewer.GET("/locks", entryHandler.ActiveLocks)
	viewer.GET("/offerings", offeringHandler.ListOfferings)
	viewer.GET("/offerings/:id/allocations", offeringHandler.GetAllocations)
	viewer.GET("/offerings/:id/allocations/integrity", offeringHandler.CheckIntegrity)
	viewer.GET("/telegrams", telegramHandler.ListTelegrams)
	viewer.GET("/entries/:entryId/returns", returnHandler.ListReturnItems)
	viewer.GET("/members", memberHandler.ListMembers)
	viewer.GET("/summary", statsHandler.KoudenSummary)

	// Edit access
	editor.POST("/entries", entryHandler.StoreEntry)
	editor.PUT("/entries/:id", entryHandler.UpdateEntry)
	editor.DELETE("/entries/:id", entryHandler.DeleteEntry)
	editor.POST("/entries/:id/lock", entryHandler.AcquireLock)
	editor.DELETE("/entries/:id/lock", entryHandler.ReleaseLock)
	editor.POST("/offerings", offeringHandler.StoreOffering)
	editor.PUT("/offerings/:id", offeringHandler.UpdateOffering)
	editor.DELETE("/offerings/:id", offeringHandler.DeleteOffering)
	editor.POST("/offerings/:id/allocations", offeringHandler.Allocate)
	editor.POST("/offerings/:id/allocations/recalculate", offeringHandler.Recalculate)
	editor.POST("/telegrams", telegramHandler.StoreTelegram)
	editor.PUT("/telegrams/:id", telegramHandler.UpdateTelegram)
	editor.DELETE("/telegrams/:id", telegramHandler.DeleteTelegram)
	editor.POST("/entries/:entryId/returns", returnHandler.StoreReturnItem)
	editor.PUT("/returns/:id", returnHandler.UpdateReturnItem)
	editor.POST("/returns/:id/sent", returnHandler.MarkReturnItemSent)
	editor.DELETE("/returns/:id", returnHandler.DeleteReturnItem)

	// Owner access
	owner.PUT("", koudenHandler.UpdateKouden)
	owner.DELETE("", koudenHandler.DeleteKouden)
	owner.PUT("/members/:id", memberHandler.UpdateMemberRole)
	owner.DELETE("/members/:id", memberHandler.RemoveMember)
	owner.POST("/invitations", memberHandler.CreateInvitation)
	owner.DELETE("/invitations/:id", memberHandler.RevokeInvitation)
}

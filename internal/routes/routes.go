package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"gorm.io/gorm"

	"github.com/example/brickaria/internal/config"
	"github.com/example/brickaria/internal/handlers"
	"github.com/example/brickaria/internal/middleware"
	"github.com/example/brickaria/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	sessions := session.New(session.Config{
		Expiration:     24 * time.Hour,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
	})

	mailer := services.NewMailer(cfg)
	otpService := services.NewOTPService(db, mailer, cfg.OTPTokenTTL)
	loyaltyService := services.NewLoyaltyService(db, cfg.LoyaltyPointsPerDollar)
	settlementService := services.NewSettlementService(db, mailer, loyaltyService)

	authHandler := handlers.NewAuthHandler(db, cfg, sessions)
	otpHandler := handlers.NewOTPHandler(db, otpService, sessions)
	catalogHandler := handlers.NewCatalogHandler(db)
	cartHandler := handlers.NewCartHandler(db, sessions)
	orderHandler := handlers.NewOrderHandler(db, cfg, sessions)
	paymentHandler := handlers.NewPaymentHandler(db, settlementService)
	profileHandler := handlers.NewProfileHandler(db, loyaltyService)
	adminHandler := handlers.NewAdminHandler(db, settlementService)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/logout", authHandler.Logout)

	// Public catalog reads
	api.Get("/categories", catalogHandler.ListCategories)
	api.Get("/products", catalogHandler.ListProducts)
	api.Get("/products/:id", catalogHandler.GetProduct)

	// Payment gateway callback. Gateways cannot carry a user session,
	// so this stays outside the authenticated group.
	api.Post("/payments/webhook", paymentHandler.Webhook)

	// Everything below requires a bearer token.
	authed := api.Group("", middleware.AuthMiddleware(cfg))

	// OTP management is reachable without a verified session so the
	// user can complete the challenge.
	otp := authed.Group("/otp")
	otp.Post("/enroll", otpHandler.Enroll)
	otp.Post("/send", otpHandler.Send)
	otp.Post("/verify", otpHandler.Verify)
	otp.Post("/disable", otpHandler.Disable)
	otp.Get("/status", otpHandler.Status)

	// Gated routes additionally require the OTP check when the user
	// has an active device.
	gated := authed.Group("", middleware.OTPGateMiddleware(otpService, sessions))

	profile := gated.Group("/profile")
	profile.Get("/", profileHandler.GetProfile)
	profile.Put("/", profileHandler.UpdateProfile)
	profile.Get("/addresses", profileHandler.ListAddresses)
	profile.Post("/addresses", profileHandler.CreateAddress)
	profile.Put("/addresses/:id", profileHandler.UpdateAddress)
	profile.Delete("/addresses/:id", profileHandler.DeleteAddress)
	profile.Get("/loyalty", profileHandler.ListLoyaltyTransactions)

	cart := gated.Group("/cart")
	cart.Get("/", cartHandler.GetCart)
	cart.Post("/items", cartHandler.AddItem)
	cart.Put("/items/:id", cartHandler.UpdateItem)
	cart.Delete("/items/:id", cartHandler.RemoveItem)
	cart.Post("/coupon", cartHandler.ApplyCoupon)
	cart.Delete("/coupon", cartHandler.RemoveCoupon)

	orders := gated.Group("/orders")
	orders.Post("/", orderHandler.CreateOrder)
	orders.Get("/", orderHandler.ListOrders)
	orders.Get("/:id", orderHandler.GetOrder)

	// Staff-only management
	admin := gated.Group("/admin", middleware.RequireStaff(db))
	admin.Post("/categories", catalogHandler.CreateCategory)
	admin.Put("/categories/:id", catalogHandler.UpdateCategory)
	admin.Delete("/categories/:id", catalogHandler.DeleteCategory)
	admin.Post("/products", catalogHandler.CreateProduct)
	admin.Put("/products/:id", catalogHandler.UpdateProduct)
	admin.Delete("/products/:id", catalogHandler.DeleteProduct)
	admin.Get("/orders", adminHandler.ListOrders)
	admin.Put("/orders/:id/status", adminHandler.UpdateOrderStatus)
	admin.Get("/coupons", adminHandler.ListCoupons)
	admin.Post("/coupons", adminHandler.CreateCoupon)
	admin.Put("/coupons/:id", adminHandler.UpdateCoupon)
	admin.Delete("/coupons/:id", adminHandler.DeleteCoupon)
}

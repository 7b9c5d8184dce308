package router

import (
	"net/http"

	"farmdirect-backend/internal/application/auth"
	"farmdirect-backend/internal/application/cart"
	"farmdirect-backend/internal/application/croplistings"
	"farmdirect-backend/internal/application/emails"
	"farmdirect-backend/internal/application/health"
	"farmdirect-backend/internal/application/negotiations"
	"farmdirect-backend/internal/application/orders"
	"farmdirect-backend/internal/application/products"
	usersvc "farmdirect-backend/internal/application/user"
	"farmdirect-backend/internal/config"
	"farmdirect-backend/internal/infrastructure/cache"
	"farmdirect-backend/internal/infrastructure/database"
	"farmdirect-backend/internal/infrastructure/events"
	authhandler "farmdirect-backend/internal/interfaces/handlers/auth"
	carthandler "farmdirect-backend/internal/interfaces/handlers/cart"
	crophandler "farmdirect-backend/internal/interfaces/handlers/croplistings"
	healthhandler "farmdirect-backend/internal/interfaces/handlers/health"
	neghandler "farmdirect-backend/internal/interfaces/handlers/negotiations"
	notifyhandler "farmdirect-backend/internal/interfaces/handlers/notifications"
	orderhandler "farmdirect-backend/internal/interfaces/handlers/orders"
	producthandler "farmdirect-backend/internal/interfaces/handlers/products"
	userhandler "farmdirect-backend/internal/interfaces/handlers/user"
	"farmdirect-backend/internal/middleware"
	"farmdirect-backend/internal/pkg/constants"

	"github.com/bwmarrin/snowflake"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// App bundles the fiber app with the handles main needs for startup checks and shutdown.
type App struct {
	Fiber  *fiber.App
	DB     *gorm.DB
	Rdb    *redis.Client
	Events *events.Dispatcher
}

func CreateApp(cfg *config.Config) (*App, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
	}
	sessionHandler, rdb, err := middleware.Session(sessionCfg)
	if err != nil {
		return nil, err
	}
	app.Use(sessionHandler)
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.Metrics())

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		Collector:      &health.Collector{Rdb: rdb, DB: &health.GormPinger{DB: db}, Stats: db},
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/", hh.Dashboard)
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	dispatcher := events.NewDispatcher()
	inbox := events.NewInbox(rdb)
	if err := inbox.Attach(dispatcher); err != nil {
		return nil, err
	}

	numbers, err := snowflake.NewNode(cfg.OrderNodeID)
	if err != nil {
		return nil, err
	}

	var mailer emails.Sender
	if cfg.SendinblueAPIKey != "" {
		mailer = &emails.BrevoClient{APIKey: cfg.SendinblueAPIKey, MailFrom: cfg.MailFrom}
	} else {
		log.Warn().Msg("SENDINBLUE_API_KEY not set; account emails are disabled")
	}

	api := app.Group("/api/v1")

	// Auth and accounts
	ah := &authhandler.Handlers{
		UserFinder: &auth.GormUserFinder{DB: db},
		OTP:        &auth.OTPService{DB: db, Store: cache.NewOTPStore(rdb, cfg.OTPTTL), Mailer: mailer},
		Rdb:        rdb,
		Config:     sessionCfg,
	}
	ag := api.Group("/auth")
	ag.Post("/login", ah.Login)
	ag.Get("/me", ah.Me)
	ag.Delete("/logout", ah.Logout)
	ag.Post("/request-otp", ah.RequestOTP)
	ag.Post("/verify-otp", ah.VerifyOTP)

	uh := &userhandler.Handlers{Service: &usersvc.Service{DB: db, Rdb: rdb, Mailer: mailer}, Config: sessionCfg}
	// registration is public
	api.Post("/users/create-user", uh.CreateUser)
	ug := api.Group("/users", middleware.RequireAuth())
	ug.Get("/view-user", uh.ViewUser)
	ug.Put("/update-user", uh.UpdateUser)
	ug.Patch("/update-role", middleware.AuthorizePermission(constants.AssignRole), uh.UpdateRole)

	// Catalog: reads are public
	ph := &producthandler.Handlers{Service: &products.Service{DB: db}}
	api.Get("/products", ph.List)
	api.Get("/products/:id", ph.Get)
	pg := api.Group("/products", middleware.RequireAuth(), middleware.AuthorizePermission(constants.ManageProducts))
	pg.Post("/", ph.Create)
	pg.Patch("/:id", ph.Update)
	pg.Post("/:id/restock", ph.Restock)
	pg.Delete("/:id", ph.Deactivate)

	// Cart
	ch := &carthandler.Handlers{Service: &cart.Service{DB: db}}
	cg := api.Group("/cart", middleware.RequireAuth(), middleware.AuthorizePermission(constants.PlaceOrders))
	cg.Get("/", ch.Get)
	cg.Delete("/", ch.Clear)
	cg.Post("/items", ch.AddItem)
	cg.Put("/items/:product_id", ch.SetQuantity)
	cg.Delete("/items/:product_id", ch.RemoveItem)

	// Negotiations
	nh := &neghandler.Handlers{Service: &negotiations.Service{DB: db, Events: dispatcher, TTL: cfg.NegotiationTTL}}
	ng := api.Group("/negotiations", middleware.RequireAuth(), middleware.AuthorizePermission(constants.Negotiate))
	ng.Post("/", nh.Create)
	ng.Get("/", nh.List)
	ng.Get("/:id", nh.Get)
	ng.Post("/:id/accept", nh.Accept)
	ng.Post("/:id/reject", nh.Reject)
	ng.Post("/:id/counter", nh.Counter)
	ng.Post("/:id/messages", nh.Message)

	// Orders
	oh := &orderhandler.Handlers{Service: &orders.Service{
		DB:                    db,
		Idempotency:           cache.NewIdempotencyStore(rdb, cfg.IdempotencyTTL),
		Events:                dispatcher,
		Numbers:               numbers,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		ShippingFee:           cfg.ShippingFee,
	}}
	og := api.Group("/orders", middleware.RequireAuth())
	og.Post("/", middleware.AuthorizePermission(constants.PlaceOrders), oh.Checkout)
	og.Post("/from-negotiation", middleware.AuthorizePermission(constants.PlaceOrders), oh.FromNegotiation)
	og.Get("/", oh.List)
	og.Get("/seller", middleware.AuthorizePermission(constants.FulfillOrders), oh.ListForSeller)
	og.Get("/:id", oh.Get)
	og.Post("/:id/cancel", oh.Cancel)
	og.Patch("/:id/items/:item_id", middleware.AuthorizePermission(constants.FulfillOrders), oh.UpdateItemStatus)

	// Crop listings: browsing is public, ordering needs a session
	crh := &crophandler.Handlers{Service: &croplistings.Service{DB: db, Events: dispatcher}}
	api.Get("/crop-listings", crh.List)
	api.Get("/crop-listings/:id", crh.Get)
	crg := api.Group("/crop-listings", middleware.RequireAuth())
	crg.Post("/", middleware.AuthorizePermission(constants.ManageCropListings), crh.Create)
	crg.Post("/:id/close", middleware.AuthorizePermission(constants.ManageCropListings), crh.Close)
	crg.Post("/:id/orders", middleware.AuthorizePermission(constants.PlaceOrders), crh.AddOrder)
	crg.Patch("/:id/orders/:order_id", middleware.AuthorizePermission(constants.ManageCropListings), crh.UpdateOrderStatus)

	// Notifications
	nth := &notifyhandler.Handlers{Inbox: inbox}
	api.Get("/notifications", middleware.RequireAuth(), nth.List)

	return &App{Fiber: app, DB: db, Rdb: rdb, Events: dispatcher}, nil
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}

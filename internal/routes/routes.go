package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/giftstream/giftstream/internal/account"
	"github.com/giftstream/giftstream/internal/app"
	"github.com/giftstream/giftstream/internal/middleware"
	"github.com/giftstream/giftstream/internal/reward"
	"github.com/giftstream/giftstream/internal/spend"
	"github.com/giftstream/giftstream/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	App *app.Container
}

// Setup configures middlewares and all application routes.
func Setup(fapp *fiber.App, d Deps) error {
	c := d.App
	cfg := c.Config

	fapp.Use(recover.New())
	fapp.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	fapp.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	fapp.Use(middleware.Audit(c.Logger))

	RegisterHealthRoutes(fapp, d)
	fapp.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})))

	accountHandler := account.NewHandler(c.Accounts)
	walletHandler := wallet.NewHandler(c.Wallet)
	spendHandler := spend.NewHandler(c.Spend)
	rewardHandler := reward.NewHandler(c.Rewards)

	api := fapp.Group("/api/v1")
	api.Get("/ping", func(ctx *fiber.Ctx) error {
		reqID, _ := ctx.Locals(middleware.LocalRequestID).(string)
		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterAccountRoutes(api, accountHandler)

	// Protected routes
	protected := api.Group("", middleware.Actor([]byte(cfg.JWTSecret), c.Accounts))
	RegisterWalletRoutes(protected, walletHandler, rewardHandler)
	RegisterReferralRoutes(protected, c.Referrals)

	spendChain := []fiber.Handler{middleware.SpendRateLimit(c.Cache, cfg.SpendRatePerMin)}
	if c.Cache != nil {
		spendChain = append(spendChain, middleware.Idempotency(c.Cache, cfg.IdempotencyTTL, c.Logger))
	}
	RegisterSpendRoutes(protected, spendHandler, spendChain...)

	admin := protected.Group("/admin", middleware.AdminOnly())
	RegisterAdminRoutes(admin, accountHandler, walletHandler, rewardHandler)

	return nil
}

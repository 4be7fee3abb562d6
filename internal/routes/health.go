package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

type check struct {
	name string
	run  func(ctx context.Context) (status string, healthy bool)
}

// RegisterHealthRoutes serves /healthz. Besides the backends it reports
// whether the reward split is usable; with a broken split every gift still
// debits coins but no tokens are minted, which is worth paging on.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	c := d.App
	checks := []check{
		{name: "postgres", run: func(ctx context.Context) (string, bool) {
			if c.DB == nil {
				return "in-memory", true
			}
			if err := c.DB.Ping(ctx); err != nil {
				return err.Error(), false
			}
			return "ok", true
		}},
		{name: "redis", run: func(ctx context.Context) (string, bool) {
			if c.Cache == nil {
				return "disabled", true
			}
			if err := c.Cache.Ping(ctx).Err(); err != nil {
				return err.Error(), false
			}
			return "ok", true
		}},
		{name: "rewards", run: func(context.Context) (string, bool) {
			if err := c.Rewards.Config().Validate(); err != nil {
				return err.Error(), false
			}
			return "ok", true
		}},
	}

	app.Get("/healthz", func(ctx *fiber.Ctx) error {
		checkCtx, cancel := context.WithTimeout(ctx.UserContext(), 2*time.Second)
		defer cancel()

		statuses := fiber.Map{}
		code := http.StatusOK
		for _, chk := range checks {
			status, healthy := chk.run(checkCtx)
			statuses[chk.name] = status
			if !healthy {
				code = http.StatusServiceUnavailable
			}
		}
		return ctx.Status(code).JSON(fiber.Map{
			"status":    statuses,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

// handlers/routes.go
package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"pong-arena/services"
)

func SetupMatchRoutes(app *fiber.App, gateway *Gateway, recorder *services.MatchRecorderService) {
	// Realtime entry point: everything in-match flows over this socket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(gateway.Handle))

	// Read-only HTTP surface
	app.Get("/matches/recent", func(c *fiber.Ctx) error {
		records, err := recorder.ListRecent(c.QueryInt("limit", 20))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load recent matches",
			})
		}
		return c.JSON(records)
	})

	app.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"connections":     gateway.Hub.ConnectionCount(),
			"active_sessions": gateway.Registry.Count(),
			"pending_rooms":   gateway.Matchmaker.RoomCount(),
		})
	})
}

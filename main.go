package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/firstnuel/snake-game-npc/config"
	"github.com/firstnuel/snake-game-npc/game"
	"github.com/firstnuel/snake-game-npc/handlers"
)

func main() {
	cfg := config.Load(os.Args[1:])

	gameManager := game.NewManager(cfg)
	defer gameManager.Close()

	router := gin.Default()

	router.GET("/ws", func(c *gin.Context) {
		gameManager.HandleWebSocket(c.Writer, c.Request)
	})
	router.GET("/api/server-info", handlers.NewServerInfoHandler(cfg.Port))

	router.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(cfg.ClientDir, "index.html"))
	})
	router.NoRoute(func(c *gin.Context) {
		c.File(filepath.Join(cfg.ClientDir, filepath.Clean(c.Request.URL.Path)))
	})

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("WebSocket endpoint: /ws")
	log.Printf("Feature flags: chat=%v powerups=%v accessibility=%v", cfg.Chat, cfg.PowerUps, cfg.Accessibility)
	log.Fatal(router.Run(":" + cfg.Port))
}

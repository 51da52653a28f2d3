// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/TiennDungg1606/rubik-socket-server/internal/handlers"
	"github.com/TiennDungg1606/rubik-socket-server/internal/room"
	"github.com/TiennDungg1606/rubik-socket-server/internal/scramble"
	"github.com/TiennDungg1606/rubik-socket-server/internal/waiting"
)

func main() {
	logger := logrus.New()
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	hub := handlers.NewHub(logger)
	registry := room.NewRegistry(scramble.NewProvider(nil), hub, logger)
	lobbies := waiting.NewManager(registry, hub, logger)
	srv := handlers.NewSocketServer(registry, lobbies, hub, logger)

	addr := ":3002"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, handlers.NewRouter(srv, logger)); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

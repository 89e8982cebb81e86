package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dl369/quiz-backend/internal/config"
	"github.com/dl369/quiz-backend/internal/server"
)

func main() {
	c, err := loadConfig()
	if err != nil {
		log.Fatalf("quiz-backend: config: %v", err)
	}

	s, err := server.Init(c)
	if err != nil {
		log.Fatalf("quiz-backend: init: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, os.Interrupt)

	go s.Start()

	<-stop
	s.Shutdown()
}

// loadConfig reads CONFIG_PATH on top of the defaults below; the loader
// treats preset field values as defaults and lets env vars override.
func loadConfig() (server.Config, error) {
	var c server.Config
	c.HTTP.Port = 8080
	c.Quiz.CacheTTL = time.Minute

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		return c, fmt.Errorf("CONFIG_PATH is not set")
	}

	if err := config.Load(path, &c); err != nil {
		return c, fmt.Errorf("load %s: %w", path, err)
	}

	return c, nil
}

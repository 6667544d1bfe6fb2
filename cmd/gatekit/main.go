package main

import (
	"log"

	"github.com/gatekit/gatekit/internal/admin/app"
)

func main() {
	application, err := app.New(app.LoadConfig())
	if err != nil {
		log.Fatalf("gatekit: startup failed: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("gatekit: %v", err)
	}
}

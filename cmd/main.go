package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"payment-router/internal/app"
	"payment-router/internal/config"
)

func main() {
	cfg := config.Load()

	app, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("Error creating application: %v", err)
	}

	server := app.Mount()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := app.Run(server); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	<-stop

	app.Services().Queue.Stop()
	if err := server.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}

package main

import (
	"flag"
	"log"
	"os"

	"github.com/rawblock/oblivious-band-join/internal/api"
	"github.com/rawblock/oblivious-band-join/internal/jobstore"
)

// runServe starts the optional HTTP/WS job API (SPEC_FULL.md C15/C16),
// wired the way the teacher's cmd/engine/main.go wires its own service:
// connect to Postgres if configured, warn and keep running without
// persistence if that fails, start the websocket hub, build the router,
// listen.
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.Parse(args)

	log.Println("Starting Oblivious Band Join job API...")

	var store api.JobStore
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := jobstore.Connect(dbURL)
		if err != nil {
			log.Printf("Warning: failed to connect to PostgreSQL, continuing without persisting job records. Error: %v", err)
		} else {
			defer db.Close()
			if err := db.InitSchema(); err != nil {
				log.Printf("Warning: jobstore schema init failed: %v", err)
			}
			store = db
		}
	} else {
		log.Println("DATABASE_URL not set — job records will not be persisted")
	}

	wsHub := api.NewHub()
	go wsHub.Run()

	jobs := api.NewJobManager(store, wsHub)
	r := api.SetupRouter(jobs, wsHub)

	port := getEnvOrDefault("PORT", "5339")
	log.Printf("Job API listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

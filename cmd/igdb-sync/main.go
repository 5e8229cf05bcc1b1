// Command igdb-sync ingests the IGDB catalogue (platforms, genres, companies
// and games) into the my-game-list PostgreSQL database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	loadEnvFiles()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

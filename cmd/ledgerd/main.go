// Command ledgerd runs the download-tracking ledger service.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"nsecli/internal/app"
)

func main() {
	// Optional .env for local development; the environment wins.
	_ = godotenv.Load()

	application, err := app.NewApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: initialization failed: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		os.Exit(1)
	}
}

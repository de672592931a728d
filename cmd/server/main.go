package main

import (
	"log/slog"
	"os"

	"payreport/internal/app/server"
)

func main() {
	if err := server.Run(); err != nil {
		slog.Error("payreport server stopped", "err", err)
		os.Exit(1)
	}
}

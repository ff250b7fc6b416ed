package main

import (
	"context"
	"log/slog"
	"os"
)

func main() {
	err := newCommand().Run(context.Background(), os.Args)
	if err != nil {
		slog.Error("onboarding failed", "error", err)
		os.Exit(1)
	}
}

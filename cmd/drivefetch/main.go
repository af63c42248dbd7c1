package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/ontahood/drivefetch/internal/cli"
	"github.com/ontahood/drivefetch/internal/version"
)

// Version information, normally injected via LDFLAGS.
var (
	Version   = "v1.0.0"
	BuildTime = "2026-08-26"
)

func main() {
	// A .env in the working directory is the lightest way to configure a
	// run; absence is not an error.
	_ = godotenv.Load()

	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

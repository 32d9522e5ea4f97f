package main

import (
	"github.com/joho/godotenv"

	"github.com/unitscope/unitscope/cmd"
)

func main() {
	// Optional .env for endpoint/concurrency overrides; viper picks the vars up.
	_ = godotenv.Load()

	cmd.Execute()
}

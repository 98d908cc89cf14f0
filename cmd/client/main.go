package main

import (
	"os"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/client"
)

func main() {
	if err := client.Execute(); err != nil {
		os.Exit(1)
	}
}

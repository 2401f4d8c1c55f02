package main

import (
	"os"

	"github.com/youthguide-na/opportunity-finder/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

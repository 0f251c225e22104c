package main

import (
	"github.com/labops/callroom/cmd"
	"github.com/labops/callroom/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}

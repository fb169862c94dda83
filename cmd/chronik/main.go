package main

import (
	"os"

	"chronik.fyi/monitor/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}

// Command demotarget starts a deliberately sloppy demo web site to point
// scans at. Usage: go run ./cmd/demotarget [port]
// Default port: 9999
package main

import (
	"log"
	"os"
	"strconv"

	"github.com/sentinelscan/sentinelscan/internal/demotarget"
)

func main() {
	cfg := demotarget.DefaultConfig()

	// Optional: custom port from command line
	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.Port = port
	}

	target := demotarget.NewDemoTarget(cfg)
	if err := target.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

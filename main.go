package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jpillora/overseer"

	"github.com/benedict-erwin/geo-gateway/cmd"
)

// main starts the application; serve runs under overseer for zero-downtime restarts
func main() {
	if !cmd.ServeRequested(os.Args[1:]) {
		cmd.Execute()
		return
	}

	addr, err := cmd.ListenAddress(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "geo-gateway:", err)
		os.Exit(1)
	}

	overseer.Run(overseer.Config{
		Program:          cmd.ExecuteWithOverseer,
		Address:          addr,
		RestartSignal:    overseer.SIGUSR2,
		TerminateTimeout: 30 * time.Second,
	})
}

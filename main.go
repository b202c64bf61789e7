// Package main is the entry point for the shipswitch NMEA packet switch.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/shipswitch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

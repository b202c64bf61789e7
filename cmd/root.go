// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shipswitch",
	Short: "shipswitch - policy-gated NMEA 0183 packet switch",
	Long: `shipswitch is a software Ethernet switch for closed shipboard instrument networks.
It learns where each instrument lives, forwards ordinary traffic like a learning switch,
and delivers NMEA 0183 sentences only to the nodes the policy subscribes to them.

Features:
  - Publish/subscribe by sentence prefix (talker + type, e.g. $HEHDT)
  - Unicast fan-out with rewritten MAC/IP and fresh checksums
  - AF_PACKET ports, pcap recording and offline replay
  - Prometheus counters per node`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/shipswitch/config.yml",
		"config file path")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(replayCmd)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cagdaskarabulut/yali-speak/internal/ui"
	"github.com/cagdaskarabulut/yali-speak/internal/version"
)

var (
	flagServer   string
	flagDomain   string
	flagLogLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "yali",
	Short:   "Peer-to-peer voice rooms over WebRTC",
	Long:    `yali joins a named voice room and keeps a direct audio link to every other participant. The server only relays connection handshakes; audio flows peer to peer.`,
	Version: version.Version,
}

// Execute runs the root command. It is called by main.main.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Signaling server URL (ws://host:port/ws)")
	rootCmd.PersistentFlags().StringVar(&flagDomain, "domain", "", "Signaling server domain, uses wss://<domain>/ws")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command tellerctl is the TellerGate operator CLI.
//
// It talks to a running orchestrator over HTTP:
//
//	tellerctl chat "what is the annual fee for the gold card"
//	tellerctl chat                      # interactive session
//	tellerctl health                    # detailed dependency health
//
// The server address comes from --server or TELLERGATE_SERVER
// (default http://localhost:12210).
package main

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/TellerGate/pkg/logging"
)

var (
	serverURL   string
	sessionID   string
	chatTimeout time.Duration

	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "tellerctl",
		Short: "A cli to talk to and inspect a TellerGate orchestrator",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if serverURL == "" {
				serverURL = os.Getenv("TELLERGATE_SERVER")
			}
			if serverURL == "" {
				serverURL = "http://localhost:12210"
			}
		},
	}
)

func main() {
	_ = godotenv.Load()

	logger = logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
		Service: "tellerctl",
	})
	defer logger.Close()

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"orchestrator base URL (default $TELLERGATE_SERVER or http://localhost:12210)")

	chatCmd.Flags().StringVar(&sessionID, "session", "",
		"session ID to continue a previous conversation")
	chatCmd.Flags().DurationVar(&chatTimeout, "timeout", 5*time.Minute,
		"per-turn timeout")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(healthCmd)
}

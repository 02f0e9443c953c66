// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the orchestrator's dependency health",
	Run:   runHealthCommand,
}

type detailedHealth struct {
	Status  string            `json:"status"`
	Targets map[string]string `json:"targets"`
}

func runHealthCommand(cmd *cobra.Command, _ []string) {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(strings.TrimSuffix(serverURL, "/") + "/health/detailed")
	if err != nil {
		logger.Error("health check failed", "error", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var health detailedHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		logger.Error("unexpected health response", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s (%s)\n", health.Status, serverURL)

	names := make([]string, 0, len(health.Targets))
	for name := range health.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-18s %s\n", name, health.Targets[name])
	}

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}

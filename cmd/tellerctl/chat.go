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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask the teller assistant a question, or start an interactive session",
	Run:   runChatCommand,
}

// ANSI styles, disabled when stdout is not a terminal.
const (
	styleDim   = "\033[2m"
	styleCyan  = "\033[36m"
	styleReset = "\033[0m"
)

type chatClient struct {
	baseURL   string
	sessionID string
	http      *http.Client
	colorize  bool
	out       io.Writer
}

func runChatCommand(cmd *cobra.Command, args []string) {
	client := &chatClient{
		baseURL:   strings.TrimSuffix(serverURL, "/"),
		sessionID: sessionID,
		http:      &http.Client{Timeout: chatTimeout},
		colorize:  isatty.IsTerminal(os.Stdout.Fd()),
		out:       os.Stdout,
	}

	if len(args) > 0 {
		question := strings.Join(args, " ")
		if err := client.ask(cmd.Context(), question); err != nil {
			logger.Error("chat turn failed", "error", err)
			os.Exit(1)
		}
		return
	}

	client.interactive(cmd.Context())
}

// interactive runs a read-ask loop until EOF or "exit". The session ID from
// the first turn carries through so follow-ups share history.
func (c *chatClient) interactive(ctx context.Context) {
	fmt.Println("Connected to", c.baseURL, "- type a question, or \"exit\" to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(c.style("you> ", styleCyan))
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		if err := c.ask(ctx, line); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

// ask streams one turn to stdout and records the session ID for follow-ups.
func (c *chatClient) ask(ctx context.Context, question string) error {
	payload, err := json.Marshal(map[string]string{
		"query":      question,
		"session_id": c.sessionID,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if sid := resp.Header.Get("X-Session-ID"); sid != "" {
		c.sessionID = sid
		fmt.Fprintln(os.Stderr, c.style("session: "+sid, styleDim))
	}

	result, err := consumeStream(resp.Body, c.out)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(result.Answer, "\n") {
		fmt.Fprintln(c.out)
	}

	if len(result.Sources) > 0 {
		fmt.Fprintln(c.out, c.style("sources:", styleDim))
		for _, src := range result.Sources {
			fmt.Fprintln(c.out, c.style("  - "+src, styleDim))
		}
	}
	return nil
}

func (c *chatClient) style(s, code string) string {
	if !c.colorize {
		return s
	}
	return code + s + styleReset
}

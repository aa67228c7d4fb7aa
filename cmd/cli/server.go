package main

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const (
	serverStartTimeout = 10 * time.Second
	serverPollInterval = 200 * time.Millisecond
)

// isServerRunning checks whether the server answers health checks.
func isServerRunning() bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// findServerBinary locates the boss-bot-server binary.
func findServerBinary() (string, error) {
	// 1. Same directory as the CLI binary
	execPath, err := os.Executable()
	if err == nil {
		serverPath := filepath.Join(filepath.Dir(execPath), "boss-bot-server")
		if _, err := os.Stat(serverPath); err == nil {
			return serverPath, nil
		}
	}

	// 2. PATH
	serverPath, err := exec.LookPath("boss-bot-server")
	if err == nil {
		return serverPath, nil
	}

	// 3. Common install locations
	commonPaths := []string{
		"/usr/local/bin/boss-bot-server",
		"/usr/bin/boss-bot-server",
		filepath.Join(os.Getenv("HOME"), "go/bin/boss-bot-server"),
		filepath.Join(os.Getenv("HOME"), ".local/bin/boss-bot-server"),
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("boss-bot-server binary not found")
}

// startServerBackground launches the server binary detached from this
// process. The binary daemonizes itself, so the launcher exits quickly.
func startServerBackground() error {
	serverPath, err := findServerBinary()
	if err != nil {
		return err
	}

	cmd := exec.Command(serverPath)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	detachProcess(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	// Reap the short-lived launcher without blocking the CLI.
	go func() {
		cmd.Wait()
	}()

	return nil
}

// waitForServerReady polls the health endpoint until it answers or the
// timeout expires.
func waitForServerReady() error {
	deadline := time.Now().Add(serverStartTimeout)
	for time.Now().Before(deadline) {
		if isServerRunning() {
			return nil
		}
		time.Sleep(serverPollInterval)
	}
	return fmt.Errorf("server did not start within %v", serverStartTimeout)
}

// ensureServerRunning starts the server when the health check fails.
func ensureServerRunning() error {
	if isServerRunning() {
		return nil
	}

	fmt.Println("Server not running, starting...")

	if err := startServerBackground(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	if err := waitForServerReady(); err != nil {
		return err
	}

	fmt.Println("Server started successfully")
	return nil
}

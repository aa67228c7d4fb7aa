package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "boss-bot",
		Short: "Boss-Bot CLI - Media download orchestration",
		Long:  `A command-line interface for queueing and tracking media downloads across Twitter/X, Reddit, YouTube and Instagram.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8765", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(logsCmd)
}

// itemView mirrors the queue item JSON returned by the server.
type itemView struct {
	Request struct {
		ID       string `json:"id"`
		URL      string `json:"url"`
		UserID   string `json:"user_id"`
		Priority int    `json:"priority"`
	} `json:"request"`
	Status   string `json:"status"`
	Phase    string `json:"phase"`
	Attempt  int    `json:"attempt"`
	Decision *struct {
		StrategyName string  `json:"strategy_name"`
		Confidence   float64 `json:"confidence"`
		Reasoning    string  `json:"reasoning"`
		AIEnhanced   bool    `json:"ai_enhanced"`
	} `json:"decision"`
	Result *struct {
		Success  bool     `json:"success"`
		FileRefs []string `json:"file_refs"`
		Platform string   `json:"platform"`
	} `json:"result"`
	Error *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Add a download to the queue",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		url := args[0]
		priority, _ := cmd.Flags().GetInt("priority")
		platform, _ := cmd.Flags().GetString("platform")
		user, _ := cmd.Flags().GetString("user")
		quality, _ := cmd.Flags().GetString("quality")
		format, _ := cmd.Flags().GetString("format")

		payload := map[string]interface{}{
			"url": url,
		}
		if priority > 0 {
			payload["priority"] = priority
		}
		if platform != "" {
			payload["platform"] = platform
		}
		if user != "" {
			payload["user_id"] = user
		}
		prefs := map[string]interface{}{}
		if quality != "" {
			prefs["quality"] = quality
		}
		if format != "" {
			prefs["format"] = format
		}
		if len(prefs) > 0 {
			payload["preferences"] = prefs
		}

		data, _ := json.Marshal(payload)
		resp, err := http.Post(serverURL+"/api/v1/downloads", "application/json", bytes.NewBuffer(data))
		if err != nil {
			fail("Error: %v\n", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusCreated {
			fail("Error: %s\n", string(body))
		}

		var item itemView
		json.Unmarshal(body, &item)
		fmt.Println("Download queued!")
		fmt.Printf("ID:     %s\n", item.Request.ID)
		fmt.Printf("Status: %s\n", item.Status)
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get download details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		resp, err := http.Get(serverURL + "/api/v1/downloads/" + args[0])
		if err != nil {
			fail("Error: %v\n", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fail("Error: %s\n", string(body))
		}

		var item itemView
		json.Unmarshal(body, &item)

		fmt.Println("Download Details:")
		fmt.Printf("  ID:       %s\n", item.Request.ID)
		fmt.Printf("  URL:      %s\n", item.Request.URL)
		fmt.Printf("  Status:   %s\n", item.Status)
		if item.Phase != "" {
			fmt.Printf("  Phase:    %s\n", item.Phase)
		}
		fmt.Printf("  Attempt:  %d\n", item.Attempt)
		fmt.Printf("  Priority: %d\n", item.Request.Priority)
		fmt.Printf("  Enqueued: %s\n", item.EnqueuedAt.Format("2006-01-02 15:04:05"))
		if item.Decision != nil {
			mode := "heuristic"
			if item.Decision.AIEnhanced {
				mode = "ai"
			}
			fmt.Printf("  Strategy: %s (%s, confidence %.2f)\n", item.Decision.StrategyName, mode, item.Decision.Confidence)
		}
		if item.Result != nil && len(item.Result.FileRefs) > 0 {
			fmt.Println("  Files:")
			for _, f := range item.Result.FileRefs {
				fmt.Printf("    %s\n", f)
			}
		}
		if item.Error != nil {
			fmt.Printf("  Error:    [%s] %s\n", item.Error.Kind, item.Error.Message)
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloads in the live queue",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		status, _ := cmd.Flags().GetString("status")

		url := serverURL + "/api/v1/downloads"
		if status != "" {
			url += "?status=" + status
		}

		resp, err := http.Get(url)
		if err != nil {
			fail("Error: %v\n", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fail("Error: %s\n", string(body))
		}

		var result struct {
			Downloads []itemView `json:"downloads"`
			Count     int        `json:"count"`
		}
		json.Unmarshal(body, &result)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tURL\tSTRATEGY\tSTATUS\tATTEMPT\tENQUEUED")
		for _, d := range result.Downloads {
			strategy := "-"
			if d.Decision != nil {
				strategy = d.Decision.StrategyName
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				truncate(d.Request.ID, 8),
				truncate(d.Request.URL, 40),
				strategy,
				d.Status,
				d.Attempt,
				d.EnqueuedAt.Format("15:04:05"))
		}
		w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue and archive statistics",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		resp, err := http.Get(serverURL + "/api/v1/downloads/stats")
		if err != nil {
			fail("Error: %v\n", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fail("Error: %s\n", string(body))
		}

		var stats struct {
			Queue struct {
				Total     int `json:"total"`
				Queued    int `json:"queued"`
				Running   int `json:"running"`
				Succeeded int `json:"succeeded"`
				Failed    int `json:"failed"`
				Cancelled int `json:"cancelled"`
			} `json:"queue"`
			Archive *struct {
				Total     int64 `json:"total"`
				Succeeded int64 `json:"succeeded"`
				Failed    int64 `json:"failed"`
				Cancelled int64 `json:"cancelled"`
			} `json:"archive"`
		}
		json.Unmarshal(body, &stats)

		fmt.Println("Queue:")
		fmt.Printf("  Total:     %d\n", stats.Queue.Total)
		fmt.Printf("  Queued:    %d\n", stats.Queue.Queued)
		fmt.Printf("  Running:   %d\n", stats.Queue.Running)
		fmt.Printf("  Succeeded: %d\n", stats.Queue.Succeeded)
		fmt.Printf("  Failed:    %d\n", stats.Queue.Failed)
		fmt.Printf("  Cancelled: %d\n", stats.Queue.Cancelled)
		if stats.Archive != nil {
			fmt.Println("Archive:")
			fmt.Printf("  Total:     %d\n", stats.Archive.Total)
			fmt.Printf("  Succeeded: %d\n", stats.Archive.Succeeded)
			fmt.Printf("  Failed:    %d\n", stats.Archive.Failed)
			fmt.Printf("  Cancelled: %d\n", stats.Archive.Cancelled)
		}
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a queued or running download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		resp, err := http.Post(serverURL+"/api/v1/downloads/"+args[0]+"/cancel", "application/json", nil)
		if err != nil {
			fail("Error: %v\n", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fail("Error: %s\n", string(body))
		}
		fmt.Println("Cancellation requested")
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Requeue a finished download as a fresh submission",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		resp, err := http.Post(serverURL+"/api/v1/downloads/"+args[0]+"/requeue", "application/json", nil)
		if err != nil {
			fail("Error: %v\n", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusCreated {
			fail("Error: %s\n", string(body))
		}

		var item itemView
		json.Unmarshal(body, &item)
		fmt.Println("Download requeued!")
		fmt.Printf("New ID: %s\n", item.Request.ID)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Archive a finished download and drop it from the live queue",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		req, err := http.NewRequest(http.MethodDelete, serverURL+"/api/v1/downloads/"+args[0], nil)
		if err != nil {
			fail("Error: %v\n", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fail("Error: %v\n", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fail("Error: %s\n", string(body))
		}
		fmt.Println("Download archived")
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived downloads, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		status, _ := cmd.Flags().GetString("status")
		platform, _ := cmd.Flags().GetString("platform")
		limit, _ := cmd.Flags().GetInt("limit")

		url := serverURL + "/api/v1/history?limit=" + strconv.Itoa(limit)
		if status != "" {
			url += "&status=" + status
		}
		if platform != "" {
			url += "&platform=" + platform
		}

		resp, err := http.Get(url)
		if err != nil {
			fail("Error: %v\n", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fail("Error: %s\n", string(body))
		}

		var result struct {
			History []struct {
				ID         string    `json:"id"`
				URL        string    `json:"url"`
				Platform   string    `json:"platform"`
				Status     string    `json:"status"`
				Attempts   int       `json:"attempts"`
				ArchivedAt time.Time `json:"archived_at"`
			} `json:"history"`
			Count int `json:"count"`
		}
		json.Unmarshal(body, &result)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tURL\tPLATFORM\tSTATUS\tATTEMPTS\tARCHIVED")
		for _, h := range result.History {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				truncate(h.ID, 8),
				truncate(h.URL, 40),
				h.Platform,
				h.Status,
				h.Attempts,
				h.ArchivedAt.Format("2006-01-02 15:04"))
		}
		w.Flush()
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "View category logs (queue, workflow, error)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		lines, _ := cmd.Flags().GetInt("lines")
		date, _ := cmd.Flags().GetString("date")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		url := serverURL + "/api/v1/logs/" + args[0] + "?limit=" + strconv.Itoa(lines)
		if date != "" {
			url += "&date=" + date
		}

		resp, err := http.Get(url)
		if err != nil {
			fail("Error: %v\n", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fail("Error: %s\n", string(body))
		}

		if jsonOutput {
			var result map[string]interface{}
			json.Unmarshal(body, &result)
			prettyJSON, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(prettyJSON))
			return
		}

		var result struct {
			Entries []struct {
				Timestamp string `json:"ts"`
				Level     string `json:"level"`
				Message   string `json:"msg"`
			} `json:"entries"`
		}
		json.Unmarshal(body, &result)
		for _, e := range result.Entries {
			fmt.Printf("%s [%s] %s\n", e.Timestamp, e.Level, e.Message)
		}
	},
}

func init() {
	addCmd.Flags().IntP("priority", "P", 0, "Priority 0-9, higher runs first")
	addCmd.Flags().StringP("platform", "p", "", "Platform hint (twitter, reddit, youtube, instagram)")
	addCmd.Flags().StringP("user", "u", "", "User ID to attribute the download to")
	addCmd.Flags().StringP("quality", "q", "", "Preferred quality (720p, 1080p, ...)")
	addCmd.Flags().StringP("format", "f", "", "Preferred container format (mp4, ...)")
	listCmd.Flags().StringP("status", "s", "", "Filter by status")
	historyCmd.Flags().StringP("status", "s", "", "Filter by terminal status")
	historyCmd.Flags().StringP("platform", "p", "", "Filter by platform (twitter, reddit, ...)")
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum records to return")
	logsCmd.Flags().IntP("lines", "n", 100, "Maximum entries to return")
	logsCmd.Flags().String("date", "", "Log date (YYYY-MM-DD, default today)")
	logsCmd.Flags().BoolP("json", "j", false, "Output in JSON format")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

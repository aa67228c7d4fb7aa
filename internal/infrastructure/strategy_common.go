package infrastructure

import (
	"fmt"
	"net/url"
	"strings"
)

// urlHost parses a raw URL and returns its lowercased host with any leading
// "www." stripped. Returns "" for unparseable or non-HTTP URLs.
func urlHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// hostMatches reports whether host equals domain or is a subdomain of it.
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// galleryDLArgs builds the gallery-dl argument list shared by the image-board
// style strategies. Recognized options: cookies_file (string), range (string,
// gallery-dl --range expression).
func galleryDLArgs(stagingDir, rawURL string, options map[string]any, writeMetadata bool) []string {
	args := []string{
		"-D", stagingDir,
	}
	if writeMetadata {
		args = append(args, "--write-metadata")
	}
	if cookies, ok := options["cookies_file"].(string); ok && cookies != "" && fileExists(cookies) {
		args = append(args, "--cookies", cookies)
	}
	if rangeExpr, ok := options["range"].(string); ok && rangeExpr != "" {
		args = append(args, "--range", rangeExpr)
	}
	args = append(args, rawURL)
	return args
}

// ytdlpArgs builds the yt-dlp argument list shared by the video strategies.
// Recognized options: format (string, raw yt-dlp format expression), quality
// (string like "720p", mapped to a resolution sort), audio_only (bool),
// cookies_file (string).
func ytdlpArgs(stagingDir, rawURL string, options map[string]any, writeMetadata, noPlaylist bool) []string {
	args := []string{
		"--restrict-filenames",
		"-o", "%(title)s [%(id)s].%(ext)s",
		"-P", stagingDir,
	}
	if writeMetadata {
		args = append(args, "--write-info-json")
	}
	if noPlaylist {
		args = append(args, "--no-playlist")
	}
	if format, ok := options["format"].(string); ok && format != "" {
		args = append(args, "-f", format)
	} else if quality, ok := options["quality"].(string); ok && quality != "" {
		if height := parseQualityHeight(quality); height > 0 {
			args = append(args, "-S", fmt.Sprintf("res:%d", height))
		}
	}
	if audioOnly, ok := options["audio_only"].(bool); ok && audioOnly {
		args = append(args, "-x")
	}
	if cookies, ok := options["cookies_file"].(string); ok && cookies != "" && fileExists(cookies) {
		args = append(args, "--cookies", cookies)
	}
	args = append(args, rawURL)
	return args
}

// parseQualityHeight maps a quality label like "1080p" or "720" to a pixel
// height. Returns 0 for labels it cannot interpret.
func parseQualityHeight(quality string) int {
	quality = strings.TrimSuffix(strings.ToLower(quality), "p")
	var height int
	if _, err := fmt.Sscanf(quality, "%d", &height); err != nil {
		return 0
	}
	if height <= 0 {
		return 0
	}
	return height
}

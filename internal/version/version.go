// Package version carries build metadata and the release update check.
package version

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Set at build time via -ldflags.
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

const (
	releaseLatestURL = "https://github.com/deagent-io/deagent/releases/latest"
	releaseAPIURL    = "https://api.github.com/repos/deagent-io/deagent/releases/latest"
)

// GetVersionString returns the full version line shown by the version command.
func GetVersionString() string {
	return fmt.Sprintf("deagent version: %s (commit: %s, built: %s)", Version, CommitHash, BuildDate)
}

// GetShortVersion returns just the version number.
func GetShortVersion() string {
	return Version
}

// CheckForUpdate reports whether a newer release exists on GitHub. Dev builds
// skip the check. The second return value is the latest tag when the check
// succeeded, even if no update is needed.
func CheckForUpdate() (bool, string, error) {
	if Version == "dev" || Version == "" || strings.Contains(Version, "dirty") {
		return false, "", nil
	}

	latest, err := latestTag()
	if err != nil || latest == "" {
		return false, "", err
	}

	if newer(latest, Version) {
		return true, latest, nil
	}
	return false, latest, nil
}

// latestTag resolves the most recent release tag. The /releases/latest
// redirect is tried first because it does not count against API rate limits;
// the JSON API is the fallback.
func latestTag() (string, error) {
	client := &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Head(releaseLatestURL)
	if err != nil {
		return "", fmt.Errorf("failed to check for updates: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusMovedPermanently {
		// Location is .../releases/tag/<tag>; the tag is the last segment.
		location := resp.Header.Get("Location")
		if i := strings.LastIndex(location, "/"); i >= 0 && i < len(location)-1 {
			return location[i+1:], nil
		}
	}

	return latestTagFromAPI()
}

func latestTagFromAPI() (string, error) {
	req, err := http.NewRequest(http.MethodGet, releaseAPIURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "deagent/"+Version)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to check for updates: %w", err)
	}
	defer resp.Body.Close()

	// Rate limits and API hiccups are not worth surfacing to the user.
	if resp.StatusCode != http.StatusOK {
		return "", nil
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("failed to parse release info: %w", err)
	}
	return release.TagName, nil
}

// newer reports whether semantic version a is greater than b.
// Missing components count as zero, so "1.2" and "1.2.0" compare equal.
func newer(a, b string) bool {
	pa := strings.Split(strings.TrimPrefix(a, "v"), ".")
	pb := strings.Split(strings.TrimPrefix(b, "v"), ".")

	for i := 0; i < 3; i++ {
		var na, nb int
		if i < len(pa) {
			na, _ = strconv.Atoi(pa[i])
		}
		if i < len(pb) {
			nb, _ = strconv.Atoi(pb[i])
		}
		if na != nb {
			return na > nb
		}
	}
	return false
}

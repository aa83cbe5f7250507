// Package updater polls a release feed and decides whether an update
// notification is due. It never writes state: recording the announced
// version is the caller's job, so a failed notification does not
// suppress a later retry of the same version.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wanwatch/internal/types"
	"wanwatch/internal/version"

	"go.uber.org/zap"
)

// DefaultFeedURL is the release feed polled when none is configured.
const DefaultFeedURL = "https://api.github.com/repos/wanwatch/wanwatch/releases/latest"

// MarkReader reads the last version already announced to the operator.
type MarkReader interface {
	LoadUpdateMark() string
}

// Checker polls the release feed.
type Checker struct {
	feedURL string
	current string
	marks   MarkReader
	logger  *zap.Logger
	client  *http.Client
}

// release is the feed's release descriptor shape.
type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
	Body    string `json:"body"`
}

// New creates a new update checker. currentVersion is usually
// version.GetInfo().Version; empty falls back to it.
func New(feedURL, currentVersion string, marks MarkReader, logger *zap.Logger) *Checker {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	if currentVersion == "" {
		currentVersion = version.GetInfo().Version
	}

	return &Checker{
		feedURL: feedURL,
		current: currentVersion,
		marks:   marks,
		logger:  logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Check fetches the latest release and returns UpdateInfo when a strictly
// newer version exists that has not already been announced. Any fetch or
// parse failure is non-fatal: logged and reported as "no update".
func (c *Checker) Check(ctx context.Context) *types.UpdateInfo {
	rel, err := c.fetchLatest(ctx)
	if err != nil {
		c.logger.Warn("Update check failed", zap.Error(err))
		return nil
	}

	latest := strings.TrimPrefix(rel.TagName, "v")
	if !Newer(latest, c.current) {
		return nil
	}

	if latest == c.marks.LoadUpdateMark() {
		c.logger.Debug("Update already announced",
			zap.String("version", latest))
		return nil
	}

	return &types.UpdateInfo{
		CurrentVersion: c.current,
		LatestVersion:  latest,
		ReleaseURL:     rel.HTMLURL,
		ReleaseNotes:   rel.Body,
	}
}

// fetchLatest retrieves the latest release descriptor from the feed.
func (c *Checker) fetchLatest(ctx context.Context) (*release, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "wanwatch/"+c.current)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Error("Failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rel); err != nil {
		return nil, fmt.Errorf("failed to decode release: %w", err)
	}

	if rel.TagName == "" {
		return nil, fmt.Errorf("release feed missing tag name")
	}

	return &rel, nil
}

// ParseVersion extracts a semantic version triple. Unparsable input
// degrades to (0,0,0) so a malformed feed cannot crash the checker.
func ParseVersion(s string) (major, minor, patch int) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 {
		return 0, 0, 0
	}

	nums := make([]int, 3)
	for i, p := range parts {
		// Tolerate trailing qualifiers on the patch component ("1-rc1")
		if i == 2 {
			if idx := strings.IndexAny(p, "-+"); idx >= 0 {
				p = p[:idx]
			}
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, 0, 0
		}
		nums[i] = n
	}

	return nums[0], nums[1], nums[2]
}

// Newer reports whether a is strictly newer than b, comparing
// major, then minor, then patch.
func Newer(a, b string) bool {
	amaj, amin, apat := ParseVersion(a)
	bmaj, bmin, bpat := ParseVersion(b)

	if amaj != bmaj {
		return amaj > bmaj
	}
	if amin != bmin {
		return amin > bmin
	}
	return apat > bpat
}

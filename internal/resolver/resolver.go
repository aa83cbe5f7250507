package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"wanwatch/internal/types"
	"wanwatch/internal/version"

	"go.uber.org/zap"
)

// ErrNoAddress is returned when no enabled protocol yielded an address.
var ErrNoAddress = errors.New("no address obtained from any provider")

// Provider describes one external address-lookup service.
type Provider struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
	JSON bool   `mapstructure:"json"` // parse body as JSON, else plain text
}

// jsonKeys are the response fields known to carry the address,
// in the order different services use them.
var jsonKeys = []string{"ip", "IPv4", "query"}

// DefaultIPv4Providers returns the built-in IPv4 lookup services.
func DefaultIPv4Providers() []Provider {
	return []Provider{
		{Name: "ipify", URL: "https://api.ipify.org?format=json", JSON: true},
		{Name: "icanhazip", URL: "https://ipv4.icanhazip.com"},
		{Name: "ipapi", URL: "https://ipapi.co/json", JSON: true},
		{Name: "myip", URL: "https://api.myip.com", JSON: true},
	}
}

// DefaultIPv6Providers returns the built-in IPv6 lookup services.
func DefaultIPv6Providers() []Provider {
	return []Provider{
		{Name: "ipify6", URL: "https://api6.ipify.org?format=json", JSON: true},
		{Name: "icanhazip6", URL: "https://ipv6.icanhazip.com"},
		{Name: "ident6", URL: "https://v6.ident.me"},
	}
}

// Config represents resolver configuration
type Config struct {
	IPv4Providers []Provider    `mapstructure:"ipv4_providers"`
	IPv6Providers []Provider    `mapstructure:"ipv6_providers"`
	GeoURL        string        `mapstructure:"geo_url"`
	GeoToken      string        `mapstructure:"geo_token"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// Resolver queries external services for the host's public addresses.
type Resolver struct {
	config *Config
	logger *zap.Logger
	client *http.Client
}

// New creates a new resolver
func New(cfg *Config, logger *zap.Logger) *Resolver {
	if len(cfg.IPv4Providers) == 0 {
		cfg.IPv4Providers = DefaultIPv4Providers()
	}
	if len(cfg.IPv6Providers) == 0 {
		cfg.IPv6Providers = DefaultIPv6Providers()
	}
	if cfg.GeoURL == "" {
		cfg.GeoURL = "https://ipinfo.io"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			DisableCompression:  true,
			MaxIdleConnsPerHost: 5,
		},
	}

	return &Resolver{
		config: cfg,
		logger: logger,
		client: client,
	}
}

// Resolve obtains the current public addresses for the enabled protocols.
// A single failing provider is skipped; a protocol with no working provider
// resolves to empty. It fails only when nothing at all was obtained.
func (r *Resolver) Resolve(ctx context.Context, monitorIPv4, monitorIPv6 bool) (types.AddressPair, *types.GeoInfo, error) {
	var pair types.AddressPair
	var geo *types.GeoInfo

	if monitorIPv4 {
		if r.config.GeoToken != "" {
			if ip, g, err := r.lookupGeo(ctx); err == nil {
				pair.IPv4 = ip
				geo = g
			} else {
				r.logger.Warn("Geo provider failed, falling back to plain lookup",
					zap.Error(err))
			}
		}
		if pair.IPv4 == "" {
			pair.IPv4 = r.lookupIPv4(ctx)
		}
	}

	if monitorIPv6 {
		pair.IPv6 = r.lookupIPv6(ctx)
	}

	if pair.IsEmpty() {
		return pair, nil, ErrNoAddress
	}

	return pair, geo, nil
}

// lookupIPv4 tries each IPv4 provider in order, returning the first
// plausible address or empty when all fail.
func (r *Resolver) lookupIPv4(ctx context.Context) string {
	for _, p := range r.config.IPv4Providers {
		candidate, err := r.query(ctx, p)
		if err != nil {
			r.logger.Warn("IPv4 provider failed",
				zap.String("provider", p.Name),
				zap.Error(err))
			continue
		}

		if !isIPv4(candidate) {
			r.logger.Warn("IPv4 provider returned implausible value",
				zap.String("provider", p.Name),
				zap.String("value", candidate))
			continue
		}

		r.logger.Debug("Resolved IPv4 address",
			zap.String("provider", p.Name),
			zap.String("ip", candidate))
		return candidate
	}
	return ""
}

// lookupIPv6 tries each IPv6 provider in order, accepting only
// globally-routable candidates.
func (r *Resolver) lookupIPv6(ctx context.Context) string {
	for _, p := range r.config.IPv6Providers {
		candidate, err := r.query(ctx, p)
		if err != nil {
			r.logger.Warn("IPv6 provider failed",
				zap.String("provider", p.Name),
				zap.Error(err))
			continue
		}

		if !IsGloballyRoutable(candidate) {
			r.logger.Warn("IPv6 provider returned ineligible address",
				zap.String("provider", p.Name),
				zap.String("value", candidate))
			continue
		}

		r.logger.Debug("Resolved IPv6 address",
			zap.String("provider", p.Name),
			zap.String("ip", candidate))
		return candidate
	}
	return ""
}

// query issues one bounded request against a provider and extracts the
// address candidate from its response.
func (r *Resolver) query(ctx context.Context, p Provider) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "wanwatch/"+version.GetInfo().Version)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			r.logger.Error("Failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if !p.JSON {
		return strings.TrimSpace(string(body)), nil
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	for _, key := range jsonKeys {
		if v, ok := fields[key].(string); ok && v != "" {
			return v, nil
		}
	}

	return "", fmt.Errorf("no address field in response")
}

// geoResponse is the ipinfo.io response shape.
type geoResponse struct {
	IP       string `json:"ip"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Org      string `json:"org"`
	Timezone string `json:"timezone"`
}

// lookupGeo fetches the address and geographic details in one call.
func (r *Resolver) lookupGeo(ctx context.Context) (string, *types.GeoInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.config.GeoURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+r.config.GeoToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "wanwatch/"+version.GetInfo().Version)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("request failed: %w", err)
	}

	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			r.logger.Error("Failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("geo provider returned status %d", resp.StatusCode)
	}

	var g geoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&g); err != nil {
		return "", nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !isIPv4(g.IP) {
		return "", nil, fmt.Errorf("geo provider returned implausible address: %s", g.IP)
	}

	return g.IP, &types.GeoInfo{
		City:     g.City,
		Region:   g.Region,
		Country:  g.Country,
		Org:      g.Org,
		Timezone: g.Timezone,
	}, nil
}

// isIPv4 checks whether s is a plausible dotted-quad IPv4 address.
func isIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil && strings.Contains(s, ".")
}

// Package lookup implements the bot's leaf lookups against public HTTP APIs:
// coin prices, jokes, the link of the day and page titles.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/config"
)

const (
	userAgent      = "streambot (+https://github.com/parsascontentcorner/streambot)"
	requestTimeout = 10 * time.Second
	maxPageBytes   = 2 << 20
	maxRedirects   = 3
)

var (
	// ErrNotConfigured is returned when the lookup has no endpoint configured.
	ErrNotConfigured = errors.New("lookup not configured")
	// ErrNoLinks is returned when the link list has nothing matching.
	ErrNoLinks = errors.New("no matching link")
	// ErrUnknownSymbol is returned when the price API does not know a coin.
	ErrUnknownSymbol = errors.New("unknown coin symbol")
	// ErrBlockedAddress is returned when a page resolves to a non-public address.
	ErrBlockedAddress = errors.New("address not allowed")
)

// sharedAddressSpace is the carrier-grade NAT range, not covered by netip.Addr.IsPrivate.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// Price is a coin quote in the reference currencies.
type Price struct {
	Symbol string
	USD    float64
	EUR    float64
}

// Client performs the lookups. Configured API endpoints use httpClient;
// pages posted in chat go through pageClient, which only dials public addresses.
type Client struct {
	httpClient *http.Client
	pageClient *http.Client
	priceURL   string
	jokeURL    string
	linksURL   string
	logger     *zap.Logger
}

// NewClient creates a lookup client from the bot configuration
func NewClient(cfg *config.BotConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		pageClient: newPageClient(publicOnly),
		priceURL:   cfg.PriceURL,
		jokeURL:    cfg.JokeURL,
		linksURL:   cfg.LinksURL,
		logger:     logger,
	}
}

// Price fetches the USD and EUR price of symbol
func (c *Client) Price(ctx context.Context, symbol string) (*Price, error) {
	if c.priceURL == "" {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("fsym", strings.ToUpper(symbol))
	q.Set("tsyms", "USD,EUR")

	var body map[string]json.RawMessage
	if err := c.getJSON(ctx, c.priceURL+"?"+q.Encode(), &body); err != nil {
		return nil, fmt.Errorf("failed to fetch price: %w", err)
	}

	// The API answers errors with 200 and a Response field.
	if raw, ok := body["Response"]; ok {
		var status string
		_ = json.Unmarshal(raw, &status)
		if status == "Error" {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
		}
	}

	p := &Price{Symbol: strings.ToUpper(symbol)}
	usd, okUSD := body["USD"]
	eur, okEUR := body["EUR"]
	if !okUSD && !okEUR {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if okUSD {
		if err := json.Unmarshal(usd, &p.USD); err != nil {
			return nil, fmt.Errorf("failed to decode USD price: %w", err)
		}
	}
	if okEUR {
		if err := json.Unmarshal(eur, &p.EUR); err != nil {
			return nil, fmt.Errorf("failed to decode EUR price: %w", err)
		}
	}

	return p, nil
}

// Joke fetches one joke
func (c *Client) Joke(ctx context.Context) (string, error) {
	if c.jokeURL == "" {
		return "", ErrNotConfigured
	}

	var body struct {
		Joke string `json:"joke"`
	}
	if err := c.getJSON(ctx, c.jokeURL, &body); err != nil {
		return "", fmt.Errorf("failed to fetch joke: %w", err)
	}

	joke := strings.TrimSpace(body.Joke)
	if joke == "" {
		return "", fmt.Errorf("failed to fetch joke: empty response")
	}
	return joke, nil
}

// LinkOfTheDay picks the link for day from the configured list.
// Lines are matched against pattern case-insensitively; an empty pattern matches all.
// The same day always yields the same link for the same list.
func (c *Client) LinkOfTheDay(ctx context.Context, pattern string, day time.Time) (string, error) {
	if c.linksURL == "" {
		return "", ErrNotConfigured
	}

	resp, err := c.get(ctx, c.linksURL, "text/plain")
	if err != nil {
		return "", fmt.Errorf("failed to fetch links: %w", err)
	}
	defer c.closeBody(resp)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read links: %w", err)
	}

	links := FilterLinks(string(data), pattern)
	if len(links) == 0 {
		return "", ErrNoLinks
	}

	return links[dayNumber(day)%len(links)], nil
}

// FilterLinks returns the non-empty, non-comment lines of list containing pattern.
func FilterLinks(list, pattern string) []string {
	pattern = strings.ToLower(strings.TrimSpace(pattern))

	var links []string
	for _, line := range strings.Split(list, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if pattern != "" && !strings.Contains(strings.ToLower(line), pattern) {
			continue
		}
		links = append(links, line)
	}
	return links
}

// dayNumber counts calendar days since the unix epoch for day's date.
func dayNumber(day time.Time) int {
	y, m, d := day.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// Title returns the readable title of the HTML page at rawURL
func (c *Client) Title(ctx context.Context, rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsedURL.Scheme)
	}

	resp, err := c.do(ctx, c.pageClient, rawURL, "text/html")
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer c.closeBody(resp)

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", fmt.Errorf("not an html page: %s", ct)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), parsedURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	title := strings.Join(strings.Fields(article.Title), " ")
	if title == "" {
		return "", fmt.Errorf("page has no title")
	}
	return title, nil
}

func (c *Client) get(ctx context.Context, rawURL, accept string) (*http.Response, error) {
	return c.do(ctx, c.httpClient, rawURL, accept)
}

func (c *Client) do(ctx context.Context, client *http.Client, rawURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.closeBody(resp)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := c.get(ctx, rawURL, "application/json")
	if err != nil {
		return err
	}
	defer c.closeBody(resp)

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Warn("failed to close response body", zap.Error(err))
	}
}

// newPageClient returns an HTTP client for fetching user supplied URLs.
// control vets every address after name resolution; nil allows all.
func newPageClient(control func(network, address string, c syscall.RawConn) error) *http.Client {
	dialer := &net.Dialer{
		Timeout: 5 * time.Second,
		Control: control,
	}
	return &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 5 * time.Second,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
			}
			return nil
		},
	}
}

// publicOnly is a dialer control refusing loopback, private, link-local and
// other non-routable addresses.
func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	ip = ip.Unmap()
	if !ip.IsGlobalUnicast() || ip.IsPrivate() || ip.IsLoopback() || sharedAddressSpace.Contains(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
	}
	return nil
}

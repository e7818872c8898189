package ecb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/davyttu/confidance-crypto/internal/config"
	"github.com/sirupsen/logrus"
)

// Rate is a reference rate of one currency against the euro
type Rate struct {
	Currency string    `json:"currency"`
	PerEUR   float64   `json:"per_eur"`
	Date     time.Time `json:"date"`
}

// Client fetches the ECB daily euro reference rates
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
	ttl    time.Duration

	mu      sync.Mutex
	cached  map[string]Rate
	fetched time.Time
}

// NewClient initializes a new ECB client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: cfg.ECBURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
		ttl: time.Hour,
	}
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.log.Debugf("ECB XML response: %d bytes", len(body))
	return body, nil
}

// parseRates extracts every currency rate from the eurofxref document
func parseRates(rawBody []byte) (map[string]Rate, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	day := doc.FindElement("//Cube[@time]")
	if day == nil {
		return nil, fmt.Errorf("no rate date found in XML")
	}
	date, err := time.Parse("2006-01-02", day.SelectAttrValue("time", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate date: %w", err)
	}

	rates := make(map[string]Rate)
	for _, el := range day.FindElements("./Cube[@currency]") {
		currency := el.SelectAttrValue("currency", "")
		value, err := strconv.ParseFloat(el.SelectAttrValue("rate", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate for %s: %w", currency, err)
		}
		rates[currency] = Rate{Currency: currency, PerEUR: value, Date: date}
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("no rates found in XML")
	}
	return rates, nil
}

// GetRate returns how many units of currency one euro buys. Results are
// cached for an hour; the feed only changes once per working day.
func (c *Client) GetRate(ctx context.Context, currency string) (Rate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached == nil || time.Since(c.fetched) > c.ttl {
		body, err := c.fetch(ctx)
		if err != nil {
			return Rate{}, err
		}
		rates, err := parseRates(body)
		if err != nil {
			return Rate{}, err
		}
		c.cached = rates
		c.fetched = time.Now()
		c.log.Infof("Retrieved %d ECB reference rates", len(rates))
	}

	rate, ok := c.cached[currency]
	if !ok {
		return Rate{}, fmt.Errorf("no ECB rate for %s", currency)
	}
	return rate, nil
}

package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"npkchat/internal/identity"
)

const (
	cacheSize = 128
	cacheTTL  = 5 * time.Minute
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries the backend for current compute prices and derived
// hash-cracking throughput. Lookups are signed and cached briefly; prices
// move slowly and the autocomplete path hits these hard.
type Client struct {
	log     *slog.Logger
	baseURL string
	signer  identity.Signer
	doer    httpDoer

	instanceCache *expirable.LRU[string, InstancePrices]
	hashCache     *expirable.LRU[string, map[string]HashPricing]
}

func NewClient(log *slog.Logger, baseURL string, signer identity.Signer) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		log:           log,
		baseURL:       strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		signer:        signer,
		doer:          &http.Client{Timeout: 30 * time.Second},
		instanceCache: expirable.NewLRU[string, InstancePrices](cacheSize, nil, cacheTTL),
		hashCache:     expirable.NewLRU[string, map[string]HashPricing](cacheSize, nil, cacheTTL),
	}
}

// GetInstancePrices returns the per-class ideal spot instance, optionally
// constrained to a forced region.
func (c *Client) GetInstancePrices(ctx context.Context, forceRegion string) (InstancePrices, error) {
	forceRegion = strings.TrimSpace(forceRegion)
	key := "instances:" + forceRegion
	if cached, ok := c.instanceCache.Get(key); ok {
		return cached, nil
	}

	var out InstancePrices
	if err := c.get(ctx, "/v1/userproxy/pricing/instances", forceRegion, &out); err != nil {
		return InstancePrices{}, err
	}
	c.instanceCache.Add(key, out)
	return out, nil
}

// GetHashPricing returns price and throughput per compute class for a hash
// type, optionally constrained to a forced region.
func (c *Client) GetHashPricing(ctx context.Context, hashType int, forceRegion string) (map[string]HashPricing, error) {
	forceRegion = strings.TrimSpace(forceRegion)
	key := fmt.Sprintf("hash:%d:%s", hashType, forceRegion)
	if cached, ok := c.hashCache.Get(key); ok {
		return cached, nil
	}

	var out map[string]HashPricing
	if err := c.get(ctx, fmt.Sprintf("/v1/userproxy/pricing/hash/%d", hashType), forceRegion, &out); err != nil {
		return nil, err
	}
	c.hashCache.Add(key, out)
	return out, nil
}

func (c *Client) get(ctx context.Context, apiPath, forceRegion string, out any) error {
	endpoint := c.baseURL + apiPath
	if forceRegion != "" {
		endpoint += "?" + url.Values{"region": {forceRegion}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build pricing request: %w", err)
	}
	if err := c.signer.Sign(ctx, req, nil); err != nil {
		return fmt.Errorf("sign pricing request: %w", err)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return fmt.Errorf("pricing lookup: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read pricing response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pricing lookup: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode pricing response: %w", err)
	}
	return nil
}

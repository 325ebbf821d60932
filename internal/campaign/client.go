package campaign

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"npkchat/internal/identity"
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// URLSigner produces a time-limited download URL for a stored object; the
// storage gateway satisfies it.
type URLSigner interface {
	PresignedGetURL(ctx context.Context, bucket, key, region string) (string, error)
}

// Client is the job-orchestration API consumer. Every call is made over a
// credential-signed request.
type Client struct {
	log    *slog.Logger
	signer identity.Signer
	doer   httpDoer

	campaignURL    string
	userdataBucket string
	region         string
	urls           URLSigner
}

func NewClient(log *slog.Logger, apiGatewayURL string, signer identity.Signer, urls URLSigner, userdataBucket, region string) *Client {
	if log == nil {
		log = slog.Default()
	}
	base := strings.TrimSuffix(strings.TrimSpace(apiGatewayURL), "/")
	if !strings.HasPrefix(base, "https://") && !strings.HasPrefix(base, "http://") {
		base = "https://" + base
	}
	return &Client{
		log:            log,
		signer:         signer,
		doer:           &http.Client{Timeout: 30 * time.Second},
		campaignURL:    base + "/v1/userproxy/campaign",
		userdataBucket: userdataBucket,
		region:         region,
		urls:           urls,
	}
}

// Create submits a new campaign order and returns the assigned campaign id.
// The backend fetches the hash file itself, so the order is enriched with a
// presigned download URL for it before submission.
func (c *Client) Create(ctx context.Context, order Order) (string, error) {
	if c.urls != nil {
		signedURL, err := c.urls.PresignedGetURL(ctx, c.userdataBucket, "self/"+order.HashFile, c.region)
		if err != nil {
			return "", fmt.Errorf("presign hash file: %w", err)
		}
		order.HashFileURL = signedURL
	}

	var out struct {
		CampaignID string `json:"campaignId"`
	}
	if err := c.do(ctx, http.MethodPost, c.campaignURL, order, &out); err != nil {
		return "", fmt.Errorf("create campaign: %w", err)
	}
	if out.CampaignID == "" {
		return "", fmt.Errorf("create campaign: no campaign id in response")
	}
	return out.CampaignID, nil
}

// Start launches a created campaign.
func (c *Client) Start(ctx context.Context, campaignID string) error {
	if err := c.do(ctx, http.MethodPut, c.campaignURL+"/"+campaignID, nil, nil); err != nil {
		return fmt.Errorf("start campaign %s: %w", campaignID, err)
	}
	return nil
}

// Cancel requests campaign termination.
func (c *Client) Cancel(ctx context.Context, campaignID string) error {
	if err := c.do(ctx, http.MethodDelete, c.campaignURL+"/"+campaignID, nil, nil); err != nil {
		return fmt.Errorf("cancel campaign %s: %w", campaignID, err)
	}
	return nil
}

// Get fetches one campaign record. A missing campaign yields (nil, nil).
func (c *Client) Get(ctx context.Context, campaignID string) (*Status, error) {
	var out *Status
	err := c.do(ctx, http.MethodGet, c.campaignURL+"/"+campaignID, nil, &out)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get campaign %s: %w", campaignID, err)
	}
	return out, nil
}

// GetAll lists the caller's campaigns.
func (c *Client) GetAll(ctx context.Context) ([]Status, error) {
	var out []Status
	if err := c.do(ctx, http.MethodGet, c.campaignURL, nil, &out); err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return out, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any) error {
	var body []byte
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = raw
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.signer.Sign(ctx, req, body); err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

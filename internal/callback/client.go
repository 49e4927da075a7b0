// Package callback delivers signed on_<action> callbacks to buyer apps.
package callback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"ondc-bpp/internal/config"
	"ondc-bpp/internal/model"
	"ondc-bpp/internal/ondcerr"
	"ondc-bpp/internal/signing"
)

// DefaultTTL is the ttl carried on outbound contexts.
const DefaultTTL = "PT30S"

// Result describes one delivery attempt.
type Result struct {
	URL        string
	StatusCode int
	Body       []byte
	Latency    time.Duration
}

// Client signs and POSTs callbacks. It never retries; a failed delivery is
// reported to the caller, which records it in the audit log.
type Client struct {
	signer     *signing.Signer
	httpClient *http.Client

	subscriberID  string
	subscriberURL string
	domain        string
	city          string
	country       string
	coreVersion   string
	now           func() time.Time
}

func NewClient(cfg *config.Config, signer *signing.Signer) *Client {
	return &Client{
		signer: signer,
		httpClient: &http.Client{
			Timeout: cfg.CallbackTimeout,
		},
		subscriberID:  cfg.SubscriberID,
		subscriberURL: cfg.SubscriberURL,
		domain:        cfg.Domain,
		city:          cfg.City,
		country:       cfg.Country,
		coreVersion:   cfg.CoreVersion,
		now:           time.Now,
	}
}

// ReplyContext builds the callback context for a request. Correlation
// fields are copied from in unchanged; the gateway drops callbacks whose
// domain, country, city, core_version, transaction_id or message_id differ
// from the request.
func (c *Client) ReplyContext(in model.Context) model.Context {
	return model.Context{
		Domain:        in.Domain,
		Country:       in.Country,
		City:          in.City,
		Action:        "on_" + in.Action,
		CoreVersion:   in.CoreVersion,
		BapID:         in.BapID,
		BapURI:        in.BapURI,
		BppID:         c.subscriberID,
		BppURI:        c.subscriberURL,
		TransactionID: in.TransactionID,
		MessageID:     in.MessageID,
		Timestamp:     c.timestamp(),
		TTL:           DefaultTTL,
	}
}

// UnsolicitedContext builds a context for a seller-initiated callback on an
// existing transaction. It carries a fresh message_id.
func (c *Client) UnsolicitedContext(action string, o model.OrderRecord) model.Context {
	return model.Context{
		Domain:        firstNonEmpty(o.Domain, c.domain),
		Country:       firstNonEmpty(o.Country, c.country),
		City:          firstNonEmpty(o.City, c.city),
		Action:        action,
		CoreVersion:   firstNonEmpty(o.CoreVersion, c.coreVersion),
		BapID:         o.BapID,
		BapURI:        o.BapURI,
		BppID:         c.subscriberID,
		BppURI:        c.subscriberURL,
		TransactionID: o.TransactionID,
		MessageID:     uuid.NewString(),
		Timestamp:     c.timestamp(),
		TTL:           DefaultTTL,
	}
}

func (c *Client) timestamp() string {
	return c.now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// Send signs cb and POSTs it to bap_uri + "/" + cb.Context.Action.
func (c *Client) Send(ctx context.Context, cb model.Callback) (Result, error) {
	if cb.Context.BapURI == "" {
		return Result{}, errors.New("no callback URL provided")
	}
	url := strings.TrimRight(cb.Context.BapURI, "/") + "/" + cb.Context.Action
	res := Result{URL: url}

	// The exact bytes that are signed are the bytes that are sent.
	body, err := signing.CanonicalJSON(cb)
	if err != nil {
		return res, fmt.Errorf("encode callback: %w", err)
	}
	auth, err := c.signer.Sign(body)
	if err != nil {
		return res, fmt.Errorf("sign callback: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return res, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", auth)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	res.Latency = time.Since(start)
	if err != nil {
		log.Printf("Callback: POST %s failed: %v", url, err)
		return res, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	res.Body, _ = io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Callback: POST %s returned %d: %s", url, resp.StatusCode, string(res.Body))
		return res, fmt.Errorf("post %s: status %d: %s", url, resp.StatusCode, string(res.Body))
	}
	return res, nil
}

// Reply sends a success callback for the request carried by in.
func (c *Client) Reply(ctx context.Context, in model.Context, message any) (Result, error) {
	return c.Send(ctx, model.Callback{Context: c.ReplyContext(in), Message: message})
}

// ReplyError sends an error-typed callback for the request carried by in.
func (c *Client) ReplyError(ctx context.Context, in model.Context, e *ondcerr.Error) (Result, error) {
	return c.Send(ctx, model.Callback{Context: c.ReplyContext(in), Error: e})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

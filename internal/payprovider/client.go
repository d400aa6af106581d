// Package payprovider talks to the third-party collection provider. Every
// request carries a recomputed HMAC-SHA1 signature since the canonical string
// embeds a timestamp and a nonce.
package payprovider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	headerMerchant  = "X-Merchant-Id"
	headerTimestamp = "X-Timestamp"
	headerNonce     = "X-Nonce"
	headerSign      = "X-Sign"
)

type Client struct {
	baseURL    string
	merchantID string
	secret     string
	http       *http.Client

	// injectable for deterministic signing in tests
	now   func() time.Time
	nonce func() string
}

type Response struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func New(baseURL, merchantID, secret string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		merchantID: merchantID,
		secret:     secret,
		http:       &http.Client{Timeout: 20 * time.Second},
		now:        time.Now,
		nonce:      uuid.NewString,
	}
}

// CreateCollection opens a collection order with the provider.
func (c *Client) CreateCollection(ctx context.Context, orderNo, amount, notifyURL string) (*Response, error) {
	return c.call(ctx, "/collection/create", map[string]string{
		"order_no":   orderNo,
		"amount":     amount,
		"notify_url": notifyURL,
	})
}

// QueryOrder fetches the provider-side state of an order.
func (c *Client) QueryOrder(ctx context.Context, orderNo string) (*Response, error) {
	return c.call(ctx, "/collection/query", map[string]string{
		"order_no": orderNo,
	})
}

func (c *Client) call(ctx context.Context, path string, params map[string]string) (*Response, error) {
	ts := strconv.FormatInt(c.now().Unix(), 10)
	nonce := c.nonce()
	identity := map[string]string{
		headerMerchant:  c.merchantID,
		headerTimestamp: ts,
		headerNonce:     nonce,
	}
	sig := c.sign(identity, params)

	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerMerchant, c.merchantID)
	req.Header.Set(headerTimestamp, ts)
	req.Header.Set(headerNonce, nonce)
	req.Header.Set(headerSign, sig)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("provider response: %w", err)
	}
	return &out, nil
}

// sign merges the identity headers with the request parameters, sorts the key
// set, URL-encodes each pair and joins with &, then hex-encodes the HMAC-SHA1
// of the result.
func (c *Client) sign(identity, params map[string]string) string {
	merged := make(map[string]string, len(identity)+len(params))
	for k, v := range params {
		merged[k] = v
	}
	for k, v := range identity {
		merged[k] = v
	}
	m := hmac.New(sha1.New, []byte(c.secret))
	m.Write([]byte(canonicalString(merged)))
	return hex.EncodeToString(m.Sum(nil))
}

func canonicalString(merged map[string]string) string {
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(merged[k]))
	}
	return strings.Join(pairs, "&")
}

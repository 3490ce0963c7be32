package clients

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const (
	DefaultMEXCBaseURL = "https://api.mexc.com"
	mexcAPIKeyHeader   = "X-MEXC-APIKEY"
	mexcRecvWindow     = 5000
)

// ErrMissingCredentials is returned by signed calls when keys are not configured.
var ErrMissingCredentials = errors.New("mexc: api key and secret are required")

// MEXCAPIError error payload returned by the MEXC REST API.
type MEXCAPIError struct {
	Status int    `json:"-"`
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (e *MEXCAPIError) Error() string {
	return fmt.Sprintf("mexc api error: status=%d code=%d msg=%s", e.Status, e.Code, e.Msg)
}

// MEXCClient thin REST client for the MEXC spot v3 API.
type MEXCClient struct {
	http      *resty.Client
	apiKey    string
	apiSecret string
	now       func() time.Time
}

func NewMEXCClient(apiKey, apiSecret string) *MEXCClient {
	return NewMEXCClientWithURL(DefaultMEXCBaseURL, apiKey, apiSecret)
}

// NewMEXCClientWithURL creates a client against a custom host.
func NewMEXCClientWithURL(baseURL, apiKey, apiSecret string) *MEXCClient {
	baseURL = strings.TrimSuffix(baseURL, "/")
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "qrlbot/1.0")

	return &MEXCClient{
		http:      client,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		now:       time.Now,
	}
}

// HasCredentials reports whether signed endpoints can be called.
func (c *MEXCClient) HasCredentials() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

// Sign returns the hex HMAC-SHA256 of the query string.
func (c *MEXCClient) Sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// Public performs an unsigned GET and decodes the JSON body into out.
func (c *MEXCClient) Public(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	resp, err := c.http.R().SetContext(ctx).Get(endpoint)
	return decode(resp, err, path, out)
}

// Signed performs a request carrying timestamp, recvWindow and signature.
func (c *MEXCClient) Signed(ctx context.Context, method, path string, params url.Values, out any) error {
	if !c.HasCredentials() {
		return ErrMissingCredentials
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.Itoa(mexcRecvWindow))
	query := params.Encode()
	query += "&signature=" + c.Sign(query)
	// signature must stay last, so the query bypasses resty's param encoding
	endpoint := path + "?" + query

	req := c.http.R().
		SetContext(ctx).
		SetHeader(mexcAPIKeyHeader, c.apiKey).
		SetHeader("Content-Type", "application/json")

	var (
		resp *resty.Response
		err  error
	)
	switch method {
	case http.MethodGet:
		resp, err = req.Get(endpoint)
	case http.MethodPost:
		resp, err = req.Post(endpoint)
	case http.MethodDelete:
		resp, err = req.Delete(endpoint)
	default:
		return errors.Errorf("unsupported method: %s", method)
	}
	return decode(resp, err, path, out)
}

func decode(resp *resty.Response, err error, path string, out any) error {
	if err != nil {
		return errors.Wrapf(err, "mexc request %s", path)
	}
	if resp.IsError() {
		apiErr := &MEXCAPIError{Status: resp.StatusCode()}
		if jsonErr := json.Unmarshal(resp.Body(), apiErr); jsonErr != nil || apiErr.Msg == "" {
			apiErr.Msg = strings.TrimSpace(string(resp.Body()))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Wrapf(err, "decode mexc response %s", path)
	}
	return nil
}

package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agnosto/autoposter/logger"
	"github.com/agnosto/autoposter/utils"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const maxReplyBytes = 64 << 10

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type xReply struct {
	status int
	body   []byte
}

func (r *xReply) ok() bool {
	return r.status >= 200 && r.status < 300
}

// XClient posts through the X API v2 "create post" endpoint.
type XClient struct {
	baseURL    string
	headers    XHeaders
	client     *http.Client
	log        logrus.FieldLogger
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	executor   failsafe.Executor[*xReply]
}

type XOption func(*XClient)

func WithHTTPClient(c *http.Client) XOption {
	return func(x *XClient) { x.client = c }
}

func WithLogger(l logrus.FieldLogger) XOption {
	return func(x *XClient) { x.log = l }
}

// WithRequestsPerMinute throttles outgoing requests. Zero or less disables
// throttling.
func WithRequestsPerMinute(n int) XOption {
	return func(x *XClient) {
		if n <= 0 {
			x.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		x.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

func WithMaxRetries(n int) XOption {
	return func(x *XClient) { x.maxRetries = max(n, 0) }
}

func WithRetryBackoff(base, maxDelay time.Duration) XOption {
	return func(x *XClient) {
		x.baseDelay = base
		x.maxDelay = max(maxDelay, base)
	}
}

func WithUserAgent(ua string) XOption {
	return func(x *XClient) { x.headers.UserAgent = ua }
}

func NewXClient(baseURL, bearerToken string, opts ...XOption) *XClient {
	x := &XClient{
		baseURL:    baseURL,
		headers:    XHeaders{BearerToken: bearerToken},
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(6*time.Second), 1),
		maxRetries: 3,
		baseDelay:  time.Second,
		maxDelay:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(x)
	}
	x.log = logger.Or(x.log)

	retry := retrypolicy.NewBuilder[*xReply]().
		WithBackoff(x.baseDelay, x.maxDelay).
		WithMaxRetries(x.maxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(r *xReply, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && retryableStatus(r.status)
		}).
		Build()
	x.executor = failsafe.With(retry)
	return x
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Publish creates a post with text. Transient failures are retried; a
// response that is still not 2xx afterwards is a rejection, and a transport
// failure on the last attempt is returned as an error.
func (x *XClient) Publish(ctx context.Context, text string) (bool, error) {
	if err := x.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limiter error: %w", err)
	}

	payload, err := json.Marshal(tweetRequest{Text: text})
	if err != nil {
		return false, err
	}

	var last *xReply
	_, err = x.executor.WithContext(ctx).Get(func() (*xReply, error) {
		reply, err := x.do(ctx, http.MethodPost, "/2/tweets", payload)
		last = reply
		if err == nil && retryableStatus(reply.status) {
			x.log.WithField("status", reply.status).Warn("X API busy, retrying")
		}
		return reply, err
	})
	if last == nil {
		return false, fmt.Errorf("x api request failed: %w", err)
	}

	if !last.ok() {
		var apiErr apiError
		_ = json.Unmarshal(last.body, &apiErr)
		x.log.WithFields(logrus.Fields{
			"status": last.status,
			"title":  apiErr.Title,
			"detail": apiErr.Detail,
		}).Warn("X API rejected the post")
		return false, nil
	}

	var created tweetResponse
	if err := json.Unmarshal(last.body, &created); err != nil {
		x.log.WithError(err).Warn("Could not decode X API response")
	}
	x.log.WithField("tweet_id", created.Data.ID).Info("Post published to X")
	return true, nil
}

// Check calls the authenticated user endpoint.
func (x *XClient) Check(ctx context.Context) error {
	reply, err := x.do(ctx, http.MethodGet, "/2/users/me", nil)
	if err != nil {
		return err
	}
	if !reply.ok() {
		return fmt.Errorf("x api answered %d", reply.status)
	}
	return nil
}

func (x *XClient) do(ctx context.Context, method, path string, body []byte) (*xReply, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, utils.JoinURL(x.baseURL, path), reader)
	if err != nil {
		return nil, err
	}
	x.headers.AddHeadersToRequest(req, body != nil)

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, err
	}
	return &xReply{status: resp.StatusCode, body: data}, nil
}

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"dualbot/pkg/config"
	"dualbot/pkg/event"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
)

const defaultRequestTimeout = config.DefaultRequestTimeoutSeconds * time.Second

// Param is one request parameter. Params keep their insertion order on the wire.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter list.
type Params []Param

// Add appends key=value and returns the extended list.
func (p Params) Add(key, value string) Params {
	return append(p, Param{Key: key, Value: value})
}

// AddInt appends an integer parameter.
func (p Params) AddInt(key string, value int64) Params {
	return p.Add(key, strconv.FormatInt(value, 10))
}

// Response is a successful platform response.
type Response struct {
	body []byte
	root string
}

// Raw returns the response body as received.
func (r Response) Raw() []byte {
	return r.body
}

// Result returns the payload: "response" for VK, "result" for Telegram, or
// the whole document for plain fetches.
func (r Response) Result() gjson.Result {
	if r.root == "" {
		return gjson.ParseBytes(r.body)
	}

	return gjson.GetBytes(r.body, r.root)
}

// Get looks path up inside the payload.
func (r Response) Get(path string) gjson.Result {
	return r.Result().Get(path)
}

// Client issues outbound Bot API calls for both platforms over one fasthttp client.
// It is safe for concurrent use and never retries.
type Client struct {
	http *fasthttp.Client

	vk       config.VKConfig
	telegram config.TelegramConfig
	log      *slog.Logger
}

// NewClient builds a client from validated configuration.
func NewClient(cfg *config.Config, log *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		http: &fasthttp.Client{
			Name:                "dualbot",
			MaxIdleConnDuration: 90 * time.Second,
		},
		vk:       cfg.VK,
		telegram: cfg.Telegram,
		log:      log.With("component", "api.client"),
	}, nil
}

// Call invokes method on platform with params sent as an ordered form body.
//
// Failures come back as *Error, except ctx cancellation which is returned as is.
func (c *Client) Call(ctx context.Context, platform event.Platform, method string, params Params) (Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		endpoint string
		root     string
		timeout  time.Duration
	)

	switch platform {
	case event.PlatformVK:
		endpoint = strings.TrimRight(c.vk.APIServer, "/") + "/method/" + method
		root = "response"
		timeout = requestTimeout(c.vk.RequestTimeoutSeconds)
		params = slices.Clip(params).Add("access_token", c.vk.AccessToken).Add("v", c.vk.APIVersion)
	case event.PlatformTelegram:
		endpoint = strings.TrimRight(c.telegram.APIServer, "/") + "/bot" + c.telegram.Token + "/" + method
		root = "result"
		timeout = requestTimeout(c.telegram.RequestTimeoutSeconds)
	default:
		return Response{}, fmt.Errorf("unsupported platform %q", platform)
	}

	args := fasthttp.AcquireArgs()
	for _, p := range params {
		args.Add(p.Key, p.Value)
	}

	req := fasthttp.AcquireRequest()
	req.SetRequestURI(endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.SetBody(args.QueryString())
	fasthttp.ReleaseArgs(args)

	status, body, err := c.do(ctx, req, timeout)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, err
		}
		return Response{}, &Error{Category: ErrorTransport, Platform: platform, Method: method, Description: err.Error()}
	}

	if !gjson.ValidBytes(body) {
		if status != fasthttp.StatusOK {
			return Response{}, &Error{Category: ErrorHTTPStatus, Platform: platform, Method: method, Code: status}
		}
		return Response{}, &Error{Category: ErrorDecode, Platform: platform, Method: method, Description: "response is not valid JSON"}
	}

	if apiErr := platformError(platform, method, body); apiErr != nil {
		return Response{}, apiErr
	}

	if status != fasthttp.StatusOK {
		return Response{}, &Error{Category: ErrorHTTPStatus, Platform: platform, Method: method, Code: status}
	}

	c.log.Debug("API call succeeded", "platform", platform, "method", method)
	return Response{body: body, root: root}, nil
}

// Fetch performs a GET on rawURL with params appended to the query string.
// It serves endpoints outside the method namespace, such as VK long-poll servers.
func (c *Client) Fetch(ctx context.Context, rawURL string, params Params, timeout time.Duration) (Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	req := fasthttp.AcquireRequest()
	req.SetRequestURI(rawURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	query := req.URI().QueryArgs()
	for _, p := range params {
		query.Add(p.Key, p.Value)
	}

	status, body, err := c.do(ctx, req, timeout)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, err
		}
		return Response{}, &Error{Category: ErrorTransport, Method: rawURL, Description: err.Error()}
	}
	if status != fasthttp.StatusOK {
		return Response{}, &Error{Category: ErrorHTTPStatus, Method: rawURL, Code: status}
	}
	if !gjson.ValidBytes(body) {
		return Response{}, &Error{Category: ErrorDecode, Method: rawURL, Description: "response is not valid JSON"}
	}

	return Response{body: body}, nil
}

// do sends req, taking ownership of it, and returns once the response arrives
// or ctx ends. The request is bounded by timeout and any ctx deadline.
func (c *Client) do(ctx context.Context, req *fasthttp.Request, timeout time.Duration) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		fasthttp.ReleaseRequest(req)
		return 0, nil, err
	}

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	type result struct {
		status int
		body   []byte
		err    error
	}

	done := make(chan result, 1)
	go func() {
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseResponse(resp)
		defer fasthttp.ReleaseRequest(req)

		err := c.http.DoDeadline(req, resp, deadline)
		done <- result{
			status: resp.StatusCode(),
			body:   append([]byte(nil), resp.Body()...),
			err:    err,
		}
	}()

	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case r := <-done:
		return r.status, r.body, r.err
	}
}

// platformError extracts the error envelope each platform uses, if present.
func platformError(platform event.Platform, method string, body []byte) *Error {
	switch platform {
	case event.PlatformVK:
		vkErr := gjson.GetBytes(body, "error")
		if !vkErr.Exists() {
			return nil
		}
		return &Error{
			Category:    ErrorAPI,
			Platform:    platform,
			Method:      method,
			Code:        int(vkErr.Get("error_code").Int()),
			Description: vkErr.Get("error_msg").String(),
		}
	case event.PlatformTelegram:
		ok := gjson.GetBytes(body, "ok")
		if !ok.Exists() || ok.Bool() {
			return nil
		}
		return &Error{
			Category:    ErrorAPI,
			Platform:    platform,
			Method:      method,
			Code:        int(gjson.GetBytes(body, "error_code").Int()),
			Description: gjson.GetBytes(body, "description").String(),
		}
	}

	return nil
}

func requestTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return defaultRequestTimeout
	}

	return time.Duration(seconds) * time.Second
}

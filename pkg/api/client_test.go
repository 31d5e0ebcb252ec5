package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"dualbot/pkg/config"
	"dualbot/pkg/event"

	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	body   string
	query  url.Values
}

func recordingServer(t *testing.T, status int, response string) (*httptest.Server, <-chan recordedRequest) {
	t.Helper()

	requests := make(chan recordedRequest, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- recordedRequest{method: r.Method, path: r.URL.Path, body: string(body), query: r.URL.Query()}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	return server, requests
}

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	client, err := NewClient(&config.Config{
		VK:       config.VKConfig{AccessToken: "vk-token", GroupID: 1, APIVersion: "5.199", APIServer: serverURL},
		Telegram: config.TelegramConfig{Token: "tg-token", APIServer: serverURL},
	}, nil)
	require.NoError(t, err)
	return client
}

func TestCallVKSendsOrderedFormWithCredentials(t *testing.T) {
	t.Parallel()

	server, requests := recordingServer(t, http.StatusOK, `{"response":{"key":"k","server":"https://lp","ts":"7"}}`)
	client := testClient(t, server.URL)

	resp, err := client.Call(context.Background(), event.PlatformVK, "groups.getLongPollServer", Params{}.AddInt("group_id", 1))
	require.NoError(t, err)
	require.Equal(t, "k", resp.Get("key").String())
	require.Equal(t, "7", resp.Get("ts").String())

	got := <-requests
	require.Equal(t, http.MethodPost, got.method)
	require.Equal(t, "/method/groups.getLongPollServer", got.path)
	require.Equal(t, "group_id=1&access_token=vk-token&v=5.199", got.body)
}

func TestCallVKLeavesCallerParamsUntouched(t *testing.T) {
	t.Parallel()

	server, requests := recordingServer(t, http.StatusOK, `{"response":1}`)
	client := testClient(t, server.URL)

	shared := make(Params, 0, 8).Add("peer_id", "1")
	backing := shared[:cap(shared)]

	_, err := client.Call(context.Background(), event.PlatformVK, "messages.send", shared)
	require.NoError(t, err)
	require.Equal(t, "peer_id=1&access_token=vk-token&v=5.199", (<-requests).body)

	require.Equal(t, Params{{Key: "peer_id", Value: "1"}}, shared)
	require.Equal(t, Param{}, backing[1])
}

func TestCallTelegramUsesTokenPath(t *testing.T) {
	t.Parallel()

	server, requests := recordingServer(t, http.StatusOK, `{"ok":true,"result":{"message_id":9}}`)
	client := testClient(t, server.URL)

	resp, err := client.SendText(context.Background(), event.PlatformTelegram, -100, "pong")
	require.NoError(t, err)
	require.Equal(t, int64(9), resp.Get("message_id").Int())

	got := <-requests
	require.Equal(t, "/bottg-token/sendMessage", got.path)
	require.Equal(t, "chat_id=-100&text=pong", got.body)
}

func TestCallCategorizesFailures(t *testing.T) {
	t.Parallel()

	vkServer, _ := recordingServer(t, http.StatusOK, `{"error":{"error_code":5,"error_msg":"User authorization failed"}}`)
	_, err := testClient(t, vkServer.URL).Call(context.Background(), event.PlatformVK, "messages.send", nil)
	require.Error(t, err)
	require.Equal(t, ErrorAPI, CategoryFromError(err))
	require.True(t, IsAPIError(err, 5))

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, event.PlatformVK, apiErr.Platform)
	require.Equal(t, "messages.send", apiErr.Method)
	require.Equal(t, "User authorization failed", apiErr.Description)

	tgServer, _ := recordingServer(t, http.StatusUnauthorized, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	_, err = testClient(t, tgServer.URL).Call(context.Background(), event.PlatformTelegram, "getMe", nil)
	require.Equal(t, ErrorAPI, CategoryFromError(err))
	require.True(t, IsAPIError(err, 401))

	htmlServer, _ := recordingServer(t, http.StatusBadGateway, `<html>bad gateway</html>`)
	_, err = testClient(t, htmlServer.URL).Call(context.Background(), event.PlatformTelegram, "getMe", nil)
	require.Equal(t, ErrorHTTPStatus, CategoryFromError(err))

	garbageServer, _ := recordingServer(t, http.StatusOK, `not json`)
	_, err = testClient(t, garbageServer.URL).Call(context.Background(), event.PlatformVK, "users.get", nil)
	require.Equal(t, ErrorDecode, CategoryFromError(err))

	_, err = testClient(t, "http://127.0.0.1:1").Call(context.Background(), event.PlatformVK, "users.get", nil)
	require.Equal(t, ErrorTransport, CategoryFromError(err))
}

func TestCallRejectsUnknownPlatform(t *testing.T) {
	t.Parallel()

	_, err := testClient(t, "http://127.0.0.1:1").Call(context.Background(), event.Platform("irc"), "send", nil)
	require.Error(t, err)
}

func TestCallHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := testClient(t, server.URL).Call(ctx, event.PlatformTelegram, "getMe", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, ErrorCanceled, CategoryFromError(err))
}

func TestFetchAppendsQuery(t *testing.T) {
	t.Parallel()

	server, requests := recordingServer(t, http.StatusOK, `{"ts":"8","updates":[]}`)
	client := testClient(t, server.URL)

	resp, err := client.Fetch(context.Background(), server.URL+"/lp", Params{}.Add("act", "a_check").Add("key", "k").Add("ts", "7"), time.Second)
	require.NoError(t, err)
	require.Equal(t, "8", resp.Get("ts").String())

	got := <-requests
	require.Equal(t, http.MethodGet, got.method)
	require.Equal(t, "/lp", got.path)
	require.Equal(t, "a_check", got.query.Get("act"))
	require.Equal(t, "k", got.query.Get("key"))
	require.Equal(t, "7", got.query.Get("ts"))
}

func TestReplyIsDetachedFromCaller(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var mu sync.Mutex
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"response":1}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	ec := &event.Context{Platform: event.PlatformVK, ConversationID: 42}

	start := time.Now()
	result := client.Reply(context.Background(), ec, "hi")
	require.Less(t, time.Since(start), 500*time.Millisecond)

	select {
	case <-result:
		t.Fatal("reply finished before the server answered")
	default:
	}

	close(release)

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("reply never finished")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"peer_id=42&message=hi&random_id=0&access_token=vk-token&v=5.199"}, bodies)
}

func TestGoRecoversPanics(t *testing.T) {
	t.Parallel()

	err := <-Go(context.Background(), func(context.Context) error { panic("boom") })
	require.ErrorContains(t, err, "boom")

	_, open := <-Go(context.Background(), func(context.Context) error { return nil })
	require.True(t, open)
}

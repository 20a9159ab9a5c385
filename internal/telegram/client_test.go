package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestNewAPIWithEndpoint_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/getMe" {
			t.Fatalf("path = %s, want /botTOKEN/getMe", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Pulchi","username":"pulchi_bot"}}`)
	}))
	defer ts.Close()

	api, err := NewAPIWithEndpoint("TOKEN", ts.URL+"/bot%s/%s", time.Second)
	if err != nil {
		t.Fatalf("NewAPIWithEndpoint error: %v", err)
	}
	if api.Self.UserName != "pulchi_bot" {
		t.Fatalf("username = %q, want pulchi_bot", api.Self.UserName)
	}
}

func TestNewAPIWithEndpoint_Unauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	}))
	defer ts.Close()

	_, err := NewAPIWithEndpoint("BAD", ts.URL+"/bot%s/%s", time.Second)
	if err == nil {
		t.Fatal("expected error for rejected token")
	}
	if !strings.Contains(err.Error(), "Unauthorized") {
		t.Fatalf("error = %v, want Unauthorized", err)
	}
}

func TestNewAPI_EmptyToken(t *testing.T) {
	if _, err := NewAPI("", time.Second); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestNewHTTPClient_Timeout(t *testing.T) {
	c := NewHTTPClient(3 * time.Second)
	if c.Timeout != 63*time.Second {
		t.Fatalf("timeout = %v, want 63s", c.Timeout)
	}

	c = NewHTTPClient(0)
	if c.Timeout != DefaultRequestTimeout+PollTimeout*time.Second {
		t.Fatalf("timeout = %v, want default", c.Timeout)
	}
}

func TestRetryAfter(t *testing.T) {
	limited := &tgbotapi.Error{
		Code:               http.StatusTooManyRequests,
		Message:            "Too Many Requests: retry after 7",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7},
	}

	d, ok := RetryAfter(fmt.Errorf("send: %w", limited))
	if !ok || d != 7*time.Second {
		t.Fatalf("RetryAfter = %v, %v; want 7s, true", d, ok)
	}

	if _, ok := RetryAfter(&tgbotapi.Error{Code: http.StatusForbidden}); ok {
		t.Fatal("403 must not be treated as rate limit")
	}
	if _, ok := RetryAfter(errors.New("network")); ok {
		t.Fatal("plain error must not be treated as rate limit")
	}
}

package effectors

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestIsNonRetryableError_GenericError(t *testing.T) {
	if isNonRetryableError(errors.New("network timeout")) {
		t.Error("generic error should be retryable")
	}
}

func TestIsNonRetryableError_4xxStatus(t *testing.T) {
	for _, code := range []int{400, 401, 403, 404} {
		err := &discordgo.RESTError{
			Response: &http.Response{StatusCode: code},
		}
		if !isNonRetryableError(err) {
			t.Errorf("HTTP %d should be non-retryable", code)
		}
	}
}

func TestIsNonRetryableError_RateLimit(t *testing.T) {
	err := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusTooManyRequests},
	}
	if isNonRetryableError(err) {
		t.Error("HTTP 429 should be retryable")
	}
}

func TestIsNonRetryableError_5xxStatus(t *testing.T) {
	for _, code := range []int{500, 502, 503} {
		err := &discordgo.RESTError{
			Response: &http.Response{StatusCode: code},
		}
		if isNonRetryableError(err) {
			t.Errorf("HTTP %d should be retryable (server error)", code)
		}
	}
}

func TestIsNonRetryableError_NilResponse(t *testing.T) {
	err := &discordgo.RESTError{Response: nil}
	if isNonRetryableError(err) {
		t.Error("RESTError with nil response should be retryable")
	}
}

func TestIsNonRetryableError_Wrapped(t *testing.T) {
	err := &discordgo.RESTError{Response: &http.Response{StatusCode: 403}}
	if !isNonRetryableError(errors.Join(errors.New("context"), err)) {
		t.Error("wrapped 403 should be non-retryable")
	}
}

func TestSendWithoutSession(t *testing.T) {
	e := NewDiscordEffector(func() *discordgo.Session { return nil }, "123")

	if err := e.Send(context.Background(), "hello"); err == nil {
		t.Error("expected error without a session")
	}
	if err := e.Typing(context.Background()); err == nil {
		t.Error("expected error without a session")
	}
}

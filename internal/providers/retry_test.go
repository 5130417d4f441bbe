package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

func TestRetryDo(t *testing.T) {
	transient := &openai.APIError{HTTPStatusCode: 503, Message: "overloaded"}
	invalid := &openai.APIError{HTTPStatusCode: 400, Message: "bad"}

	tests := []struct {
		name      string
		attempts  int
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{"success first try", 3, nil, 1, nil},
		{"transient then success", 3, []error{transient}, 2, nil},
		{"transient exhausts attempts", 2, []error{transient, transient, transient}, 2, transient},
		{"permanent stops at once", 3, []error{invalid}, 1, invalid},
		{"zero attempts means one", 0, []error{transient}, 1, transient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := RetryDo(context.Background(), RetryConfig{Attempts: tt.attempts, MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
				func() (string, error) {
					calls++
					if calls <= len(tt.errs) {
						return "", tt.errs[calls-1]
					}
					return "ok", nil
				})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != "ok" {
				t.Errorf("RetryDo = %q, %v", got, err)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{&openai.APIError{HTTPStatusCode: 429}, true},
		{&openai.APIError{HTTPStatusCode: 500}, true},
		{&openai.APIError{HTTPStatusCode: 401}, false},
		{&openai.RequestError{HTTPStatusCode: 502}, true},
		{errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

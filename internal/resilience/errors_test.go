package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", Transient(errors.New("x"), 503), true},
		{"wrapped explicit", fmt.Errorf("gus: %w", Transient(errors.New("x"), 429)), true},
		{"conn reset", syscall.ECONNRESET, true},
		{"message", errors.New("read tcp: i/o timeout"), true},
		{"permanent", errors.New("invalid key"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTransientNil(t *testing.T) {
	if Transient(nil, 500) != nil {
		t.Error("Transient(nil) must be nil")
	}
}

func TestTransientStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !TransientStatus(code) {
			t.Errorf("%d should be transient", code)
		}
	}
	for _, code := range []int{http.StatusOK, 400, 401, 403, 404} {
		if TransientStatus(code) {
			t.Errorf("%d should not be transient", code)
		}
	}
}

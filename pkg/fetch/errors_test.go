package fetch

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestPortalError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *PortalError
		want []string
	}{
		{
			name: "status error",
			err: &PortalError{
				StatusCode: 503,
				Class:      ErrorClassServer,
				Message:    "503 Service Unavailable",
			},
			want: []string{"server", "503"},
		},
		{
			name: "wrapped error",
			err: &PortalError{
				Class:   ErrorClassClient,
				Message: "build request",
				Err:     errors.New("missing protocol scheme"),
			},
			want: []string{"client", "missing protocol scheme"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.want {
				if !strings.Contains(msg, want) {
					t.Errorf("Error() = %q, want it to contain %q", msg, want)
				}
			}
		})
	}
}

func TestPortalError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &PortalError{Class: ErrorClassNetwork, Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is should reach the wrapped error")
	}

	var pe *PortalError
	wrapped := fmt.Errorf("fetch page: %w", err)
	if !errors.As(wrapped, &pe) {
		t.Error("errors.As should find PortalError in chain")
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{400, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassClient},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
		{200, ""},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestErrorClass(t *testing.T) {
	if got := errorClass(&PortalError{Class: ErrorClassServer}); got != ErrorClassServer {
		t.Errorf("errorClass(PortalError) = %q, want server", got)
	}
	if got := errorClass(errors.New("dial tcp: timeout")); got != ErrorClassNetwork {
		t.Errorf("errorClass(plain error) = %q, want network", got)
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  bool
	}{
		{ErrorClassClient, false},
		{ErrorClassServer, true},
		{ErrorClassNetwork, true},
		{"", false},
	}

	for _, tt := range tests {
		if got := shouldRetry(tt.class); got != tt.want {
			t.Errorf("shouldRetry(%q) = %v, want %v", tt.class, got, tt.want)
		}
	}
}

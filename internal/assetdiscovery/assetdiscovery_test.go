package assetdiscovery

import (
	"context"
	"strings"
	"testing"

	"github.com/sentinelscan/sentinelscan/internal/interfaces"
)

func TestRegisteredDomain(t *testing.T) {
	tests := []struct {
		host string
		want string
		ok   bool
	}{
		{"example.com", "example.com", true},
		{"www.example.com", "example.com", true},
		{"app.staging.example.co.uk", "example.co.uk", true},
		{"Example.COM.", "example.com", true},
		{"192.168.1.10", "", false},
		{"::1", "", false},
		{"localhost", "", false},
	}
	for _, tt := range tests {
		got, ok := RegisteredDomain(tt.host)
		if got != tt.want || ok != tt.ok {
			t.Errorf("RegisteredDomain(%q) = (%q, %v), want (%q, %v)",
				tt.host, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseOutputDedupes(t *testing.T) {
	output := strings.Join([]string{
		"api.example.com",
		"www.example.com",
		"API.example.com",
		"",
		"some noise line with spaces",
		"mail.example.com",
	}, "\n")

	subs, err := parseOutput(strings.NewReader(output))
	if err != nil {
		t.Fatalf("parseOutput: %v", err)
	}
	want := []string{"api.example.com", "www.example.com", "mail.example.com"}
	if len(subs) != len(want) {
		t.Fatalf("got %v, want %v", subs, want)
	}
	for i := range want {
		if subs[i] != want[i] {
			t.Errorf("subs[%d] = %q, want %q", i, subs[i], want[i])
		}
	}
}

func TestDiscoverSkipsIPLiterals(t *testing.T) {
	s := New(interfaces.NewTestLogger(testing.Verbose()), WithBinary("/nonexistent/subfinder"))
	subs, err := s.DiscoverSubdomains(context.Background(), "10.0.0.5")
	if err != nil {
		t.Fatalf("DiscoverSubdomains: %v", err)
	}
	if subs != nil {
		t.Errorf("expected no enumeration for IP literal, got %v", subs)
	}
}

func TestDiscoverMissingBinaryFails(t *testing.T) {
	s := New(interfaces.NewTestLogger(testing.Verbose()), WithBinary("/nonexistent/subfinder"))
	if _, err := s.DiscoverSubdomains(context.Background(), "example.com"); err == nil {
		t.Fatal("expected error for missing binary")
	}
}

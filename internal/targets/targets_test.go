package targets

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantAccepted []string
		wantRejected []string
	}{
		{
			name:         "mixed delimiters dedup and scheme normalization",
			raw:          "example.com, https://test.com\nbad url\nexample.com",
			wantAccepted: []string{"https://example.com", "https://test.com"},
			wantRejected: []string{"bad url"},
		},
		{
			name:         "empty input",
			raw:          "",
			wantAccepted: nil,
			wantRejected: nil,
		},
		{
			name:         "blank lines and whitespace dropped",
			raw:          "\n  \n,,example.org\n",
			wantAccepted: []string{"https://example.org"},
		},
		{
			name:         "existing scheme preserved",
			raw:          "http://example.com:8080/app",
			wantAccepted: []string{"http://example.com:8080/app"},
		},
		{
			name:         "unsupported scheme rejected",
			raw:          "ftp://example.com",
			wantRejected: []string{"ftp://example.com"},
		},
		{
			name:         "ip literal accepted",
			raw:          "192.168.1.10",
			wantAccepted: []string{"https://192.168.1.10"},
		},
		{
			name:         "duplicate after normalization collapses",
			raw:          "https://example.com\nexample.com",
			wantAccepted: []string{"https://example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accepted, rejected := Parse(tt.raw)
			if !reflect.DeepEqual(accepted, tt.wantAccepted) {
				t.Errorf("accepted = %v, want %v", accepted, tt.wantAccepted)
			}
			if !reflect.DeepEqual(rejected, tt.wantRejected) {
				t.Errorf("rejected = %v, want %v", rejected, tt.wantRejected)
			}
		})
	}
}

func TestHost(t *testing.T) {
	h, err := Host("https://sub.example.com:8443/login")
	if err != nil {
		t.Fatalf("Host: %v", err)
	}
	if h != "sub.example.com" {
		t.Errorf("host = %q, want sub.example.com", h)
	}

	if _, err := Host("://nope"); err == nil {
		t.Error("expected error for malformed target")
	}
}

package config

import (
	"context"
	"net/netip"
	"testing"
	"time"
)

func TestShared_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *Shared
		wantErr bool
	}{
		{
			name:    "valid IPv4 config",
			cfg:     &Shared{Host: "127.0.0.1", Port: 8888},
			wantErr: false,
		},
		{
			name:    "valid IPv6 config",
			cfg:     &Shared{Host: "::1", Port: 8888, IPv6: true},
			wantErr: false,
		},
		{
			name:    "valid hostname",
			cfg:     &Shared{Host: "localhost", Port: 8888, Timeout: time.Second},
			wantErr: false,
		},
		{
			name:    "invalid: empty host",
			cfg:     &Shared{Host: "", Port: 8888},
			wantErr: true,
		},
		{
			name:    "invalid: IPv4 address with ipv6 flag",
			cfg:     &Shared{Host: "127.0.0.1", Port: 8888, IPv6: true},
			wantErr: true,
		},
		{
			name:    "invalid: IPv6 address without ipv6 flag",
			cfg:     &Shared{Host: "::1", Port: 8888},
			wantErr: true,
		},
		{
			name:    "invalid: port too low",
			cfg:     &Shared{Host: "127.0.0.1", Port: 0},
			wantErr: true,
		},
		{
			name:    "invalid: port too high",
			cfg:     &Shared{Host: "127.0.0.1", Port: 65536},
			wantErr: true,
		},
		{
			name:    "invalid: negative timeout",
			cfg:     &Shared{Host: "127.0.0.1", Port: 8888, Timeout: -time.Second},
			wantErr: true,
		},
		{
			name:    "invalid: negative max conns",
			cfg:     &Shared{Host: "127.0.0.1", Port: 8888, MaxConns: -1},
			wantErr: true,
		},
		{
			name:    "valid: max conns",
			cfg:     &Shared{Host: "127.0.0.1", Port: 8888, MaxConns: 4},
			wantErr: false,
		},
		{
			name:    "valid: port 1",
			cfg:     &Shared{Host: "127.0.0.1", Port: 1},
			wantErr: false,
		},
		{
			name:    "valid: port 65535",
			cfg:     &Shared{Host: "127.0.0.1", Port: 65535},
			wantErr: false,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			errs := tc.cfg.Validate()
			if (len(errs) > 0) != tc.wantErr {
				t.Errorf("Shared.Validate() errors = %v, wantErr %v", errs, tc.wantErr)
			}
		})
	}
}

func TestShared_Endpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  *Shared
		want netip.AddrPort
	}{
		{
			name: "IPv4 literal",
			cfg:  &Shared{Host: "127.0.0.1", Port: 8888},
			want: netip.MustParseAddrPort("127.0.0.1:8888"),
		},
		{
			name: "IPv6 literal",
			cfg:  &Shared{Host: "::1", Port: 9000, IPv6: true},
			want: netip.MustParseAddrPort("[::1]:9000"),
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := tc.cfg.Endpoint(context.Background())
			if err != nil {
				t.Fatalf("Endpoint() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("Endpoint() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestMessage_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      *Message
		wantErrs int
	}{
		{"defaults", &Message{TTL: -1, InOrder: true, BufSize: 65536}, 0},
		{"ttl zero", &Message{TTL: 0, BufSize: 1}, 0},
		{"ttl below -1", &Message{TTL: -2, BufSize: 1}, 1},
		{"empty buffer", &Message{TTL: -1, BufSize: 0}, 1},
		{"negative count", &Message{TTL: -1, BufSize: 1, Count: -1}, 1},
		{"everything wrong", &Message{TTL: -5, BufSize: -1, Count: -1}, 3},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if errs := tc.cfg.Validate(); len(errs) != tc.wantErrs {
				t.Errorf("Message.Validate() = %v, want %d errors", errs, tc.wantErrs)
			}
		})
	}
}

func TestTransfer_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      *Transfer
		wantErrs int
	}{
		{"valid", &Transfer{Path: "/tmp/x", Size: 10}, 0},
		{"no path", &Transfer{Size: 10}, 1},
		{"negative offset", &Transfer{Path: "x", Offset: -1}, 1},
		{"negative size", &Transfer{Path: "x", Size: -1}, 1},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if errs := tc.cfg.Validate(); len(errs) != tc.wantErrs {
				t.Errorf("Transfer.Validate() = %v, want %d errors", errs, tc.wantErrs)
			}
		})
	}
}

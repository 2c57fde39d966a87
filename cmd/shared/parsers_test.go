package shared

import "testing"

func TestParseEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		host  string
		port  int
		err   bool
	}{
		{input: "localhost:123", host: "localhost", port: 123},
		{input: "127.0.0.1:8888", host: "127.0.0.1", port: 8888},
		{input: "[::1]:8888", host: "::1", port: 8888},
		{input: "[fe80::1%eth0]:9000", host: "fe80::1%eth0", port: 9000},
		{input: ":123", host: "", port: 123}, // all interfaces
		{input: "*:123", host: "", port: 123},

		// bad ports
		{input: "localhost:0", err: true},
		{input: "localhost:-1", err: true},
		{input: "localhost:65536", err: true},
		{input: "localhost:eighty", err: true},
		{input: "localhost:", err: true},

		// bad format
		{input: "::1:8888", err: true},
		{input: "localhost", err: true},
		{input: "udt://localhost:123", err: true},
		{input: "", err: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()

			host, port, err := ParseEndpoint(tc.input)
			if (err != nil) != tc.err {
				t.Fatalf("ParseEndpoint(%q) err = %v, want err = %t", tc.input, err, tc.err)
			}
			if err != nil {
				return
			}
			if host != tc.host || port != tc.port {
				t.Errorf("ParseEndpoint(%q) = %q %d, want %q %d", tc.input, host, port, tc.host, tc.port)
			}
		})
	}
}

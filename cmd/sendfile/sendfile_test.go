package sendfile

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"dominicbreuker/goudt/cmd/recvfile"
	"dominicbreuker/goudt/cmd/shared"
	"dominicbreuker/goudt/internal/udttest"
	"dominicbreuker/goudt/pkg/config"
	"dominicbreuker/goudt/pkg/log"
	"dominicbreuker/goudt/pkg/udt"
)

func TestGetCommand(t *testing.T) {
	t.Parallel()

	cmd := GetCommand()

	if cmd.Name != "sendfile" {
		t.Errorf("command name = %q; want %q", cmd.Name, "sendfile")
	}
	if cmd.Action == nil {
		t.Error("command action should not be nil")
	}
}

func TestRangeSize(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, make([]byte, 100), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     config.Transfer
		want    int64
		wantErr bool
	}{
		{"whole file", config.Transfer{Path: path}, 100, false},
		{"rest after offset", config.Transfer{Path: path, Offset: 40}, 60, false},
		{"explicit size", config.Transfer{Path: path, Offset: 10, Size: 5}, 5, false},
		{"size too large", config.Transfer{Path: path, Offset: 10, Size: 95}, 0, true},
		{"offset beyond end", config.Transfer{Path: path, Offset: 101}, 0, true},
		{"missing file", config.Transfer{Path: path + ".missing"}, 0, true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := rangeSize(&tc.cfg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("rangeSize() error = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("rangeSize() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestSend_ToRecvfile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	content := bytes.Repeat([]byte("0123456789"), 50000)
	if err := os.WriteFile(src, content, 0o600); err != nil {
		t.Fatal(err)
	}

	client, server := udttest.Pair(t, udt.Stream)

	done := make(chan error, 1)
	go func() {
		handle := recvfile.Handler(&config.Transfer{Path: dst}, &log.Logger{})
		done <- handle(context.Background(), server, netip.AddrPort{})
	}()

	if err := Send(client, &config.Transfer{Path: src, Offset: 10}, &log.Logger{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := <-done; !errors.Is(err, shared.ErrStop) {
		t.Fatalf("recvfile handler error = %v, want ErrStop", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content[10:]) {
		t.Errorf("received %d bytes that differ from the sent range", len(got))
	}
}

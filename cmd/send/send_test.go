package send

import (
	"testing"

	"dominicbreuker/goudt/internal/udttest"
	"dominicbreuker/goudt/pkg/framing"
	"dominicbreuker/goudt/pkg/log"
	"dominicbreuker/goudt/pkg/udt"
)

func TestGetCommand(t *testing.T) {
	t.Parallel()

	cmd := GetCommand()

	if cmd.Name != "send" {
		t.Errorf("command name = %q; want %q", cmd.Name, "send")
	}
	if cmd.Action == nil {
		t.Error("command action should not be nil")
	}
}

func TestSendStrings(t *testing.T) {
	t.Parallel()

	client, server := udttest.Pair(t, udt.Stream)

	strs := []string{"Hello UDT!", "", "ünïcödé"}
	if err := SendStrings(client, strs, &log.Logger{}); err != nil {
		t.Fatalf("SendStrings() error = %v", err)
	}
	for _, want := range strs {
		got, err := framing.ReadString(server)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("ReadString() = %q, want %q", got, want)
		}
	}

	msg, _ := udttest.Pair(t, udt.Message)
	if err := SendStrings(msg, []string{"x"}, &log.Logger{}); err == nil {
		t.Error("SendStrings() on a message socket succeeded")
	}
}

package framing

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestWriteString_Layout(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteString(&buf, "héllo"); err != nil {
		t.Fatal(err)
	}

	want := []byte{6, 0, 0, 0, 'h', 0xc3, 0xa9, 'l', 'l', 'o'}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("frame = % x, want % x", buf.Bytes(), want)
	}
}

func TestReadString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   []byte
		want    string
		wantErr error
	}{
		{
			name:  "simple",
			input: []byte{2, 0, 0, 0, 'h', 'i'},
			want:  "hi",
		},
		{
			name:  "empty payload",
			input: []byte{0, 0, 0, 0},
			want:  "",
		},
		{
			name:  "invalid utf8 replaced",
			input: []byte{2, 0, 0, 0, 'a', 0xff},
			want:  "a�",
		},
		{
			name:    "clean end",
			input:   nil,
			wantErr: io.EOF,
		},
		{
			name:    "short header",
			input:   []byte{2, 0},
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "short payload",
			input:   []byte{5, 0, 0, 0, 'a'},
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "too long",
			input:   []byte{0xff, 0xff, 0xff, 0xff},
			wantErr: ErrTooLong,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ReadString(bytes.NewReader(tc.input))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("ReadString() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadString() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("ReadString() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestReadString_OneByteReads(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	for _, s := range []string{"first", "", strings.Repeat("x", 10000)} {
		if err := WriteString(&buf, s); err != nil {
			t.Fatal(err)
		}
	}

	r := iotest.OneByteReader(&buf)
	for _, want := range []string{"first", "", strings.Repeat("x", 10000)} {
		got, err := ReadString(r)
		if err != nil {
			t.Fatalf("ReadString() error = %v", err)
		}
		if got != want {
			t.Errorf("ReadString() returned %d bytes, want %d", len(got), len(want))
		}
	}
	if _, err := ReadString(r); err != io.EOF {
		t.Errorf("ReadString() at end = %v, want io.EOF", err)
	}
}

func TestWriteString_WriterError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	err := WriteString(errWriter{boom}, "x")
	if !errors.Is(err, boom) {
		t.Errorf("WriteString() error = %v, want %v", err, boom)
	}
}

type errWriter struct{ err error }

func (w errWriter) Write([]byte) (int, error) { return 0, w.err }

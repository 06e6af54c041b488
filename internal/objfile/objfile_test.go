package objfile

import "testing"

func TestOpenUnrecognizedFormat(t *testing.T) {
	if _, err := Open([]byte("not an object file")); err == nil {
		t.Fatal("expected error for unrecognized container format")
	}
}

func TestOpenTruncatedELF(t *testing.T) {
	if _, err := Open([]byte("\x7fELF")); err == nil {
		t.Fatal("expected error for truncated ELF header")
	}
}

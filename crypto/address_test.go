package crypto

import "testing"

func TestParseAddressRoundTrip(t *testing.T) {
	const canonical = "0x00000000000000000000000000000000c1ea4f0d"
	addr, err := ParseAddress(canonical)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := FormatAddress(addr); got != canonical {
		t.Fatalf("round trip mismatch: %s", got)
	}
}

func TestParseAddressAcceptsBareHex(t *testing.T) {
	addr, err := ParseAddress("00000000000000000000000000000000c1ea4f0d")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if addr[16] != 0xc1 {
		t.Fatalf("unexpected decode")
	}
}

func TestParseAddressRejectsBadInput(t *testing.T) {
	for _, value := range []string{"", "0x1234", "0xzz000000000000000000000000000000000000zz", "not-hex"} {
		if _, err := ParseAddress(value); err == nil {
			t.Fatalf("expected failure for %q", value)
		}
	}
}

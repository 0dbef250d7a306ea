package codec

import (
	"strings"
	"testing"
)

func TestLimitRejectsOversizedDecode(t *testing.T) {
	c := Limit[map[string]any]{Inner: JSON[map[string]any]{}, MaxDecode: 16}

	big := []byte(`{"v":"` + strings.Repeat("x", 64) + `"}`)
	if _, err := c.Decode(big); err == nil {
		t.Fatalf("oversized payload accepted")
	}

	small := []byte(`{"v":"ok"}`)
	v, err := c.Decode(small)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v["v"] != "ok" {
		t.Fatalf("decode wrong: %v", v)
	}
}

func TestLimitEncodeUnaffected(t *testing.T) {
	c := Limit[map[string]any]{Inner: JSON[map[string]any]{}, MaxDecode: 4}

	b, err := c.Encode(map[string]any{"field": strings.Repeat("x", 64)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(b) <= 4 {
		t.Fatalf("encode truncated: %d bytes", len(b))
	}
}

func TestLimitZeroMeansUnlimited(t *testing.T) {
	c := Limit[map[string]any]{Inner: JSON[map[string]any]{}}
	if _, err := c.Decode([]byte(`{"v":"` + strings.Repeat("x", 1024) + `"}`)); err != nil {
		t.Fatalf("Decode: %v", err)
	}
}

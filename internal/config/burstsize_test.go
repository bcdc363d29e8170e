package config

import "testing"

func TestParseBurstSizeRoundTrip(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"1024", 1024},
		{"1k", 1024},
		{"64k", 65536},
	}
	for _, c := range cases {
		got, err := ParseBurstSize(c.in)
		if err != nil {
			t.Fatalf("ParseBurstSize(%q) returned error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseBurstSize(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseBurstSizeRejectsNegative(t *testing.T) {
	if _, err := ParseBurstSize("-1"); err == nil {
		t.Error("ParseBurstSize(\"-1\") should fail")
	}
}

func TestParseBurstSizeRejectsUnknownSuffix(t *testing.T) {
	if _, err := ParseBurstSize("1m"); err == nil {
		t.Error("ParseBurstSize(\"1m\") should fail: only a 'k' suffix is recognized")
	}
}

func TestParseBurstSizeRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "k", "abc", "1kb", " 1k"} {
		if _, err := ParseBurstSize(in); err == nil {
			t.Errorf("ParseBurstSize(%q) should fail", in)
		}
	}
}

func TestBurstSizeUnmarshalYAMLAcceptsIntScalar(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  health_port: 1\n  http_port: 2\nburst_size: 2048\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.BurstSize == nil || cfg.BurstSize.Bytes != 2048 {
		t.Fatalf("expected burst_size 2048, got %+v", cfg.BurstSize)
	}
}

func TestBurstSizeUnmarshalYAMLAcceptsKSuffixString(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  health_port: 1\n  http_port: 2\nburst_size: \"64k\"\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.BurstSize == nil || cfg.BurstSize.Bytes != 65536 {
		t.Fatalf("expected burst_size 65536, got %+v", cfg.BurstSize)
	}
}

func TestBurstSizeUnmarshalYAMLRejectsBadValue(t *testing.T) {
	_, err := Parse([]byte("server:\n  health_port: 1\n  http_port: 2\nburst_size: \"1m\"\n"))
	if err == nil {
		t.Fatal("expected a configuration error for burst_size \"1m\"")
	}
}

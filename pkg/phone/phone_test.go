package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		region   string
		wantE164 string
		wantKey  string
	}{
		{name: "international format", raw: "+971 4 123 4567", region: "AE", wantE164: "+97141234567", wantKey: "41234567"},
		{name: "national format", raw: "04 123 4567", region: "AE", wantE164: "+97141234567", wantKey: "41234567"},
		{name: "mobile", raw: "050 123 4567", region: "AE", wantE164: "+971501234567", wantKey: "501234567"},
		{name: "unparseable keeps trailing digits", raw: "ext 12-34-56-78-90-12", region: "AE", wantKey: "345678901"},
		{name: "empty", raw: "  ", region: "AE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw, tt.region)
			assert.Equal(t, tt.wantE164, got.E164)
			assert.Equal(t, tt.wantKey, got.MatchKey)
		})
	}
}

func TestNormalizeFormatsAgree(t *testing.T) {
	a := Normalize("+971 50 123 4567", "AE")
	b := Normalize("0501234567", "AE")
	assert.Equal(t, a.MatchKey, b.MatchKey)
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "97141234567", Digits("+971 (4) 123-4567"))
	assert.Equal(t, "", Digits("n/a"))
}

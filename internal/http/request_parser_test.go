package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mahjong/internal/core"
	"mahjong/internal/records"
)

func TestParseMonthParams(t *testing.T) {
	fallback := core.YearMonth{Year: 2026, Month: 1}
	tests := []struct {
		name  string
		query url.Values
		want  core.YearMonth
	}{
		{"both provided", url.Values{"year": {"2024"}, "month": {"6"}}, core.YearMonth{Year: 2024, Month: 6}},
		{"only month", url.Values{"month": {"12"}}, core.YearMonth{Year: 2026, Month: 12}},
		{"empty uses fallback", url.Values{}, fallback},
		{"month out of range", url.Values{"month": {"13"}}, fallback},
		{"garbage", url.Values{"year": {"x"}, "month": {"y"}}, fallback},
		{"whitespace trimmed", url.Values{"year": {" 2025 "}, "month": {" 3 "}}, core.YearMonth{Year: 2025, Month: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMonthParams(tt.query, fallback))
		})
	}
}

func parserFor(t *testing.T, contentType, body string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	return NewRequestBodyParser(httptest.NewRecorder(), req)
}

func TestRequestBodyParser(t *testing.T) {
	t.Run("json with numbers", func(t *testing.T) {
		p := parserFor(t, "application/json", `{"date":"2026-01-05","amount":12.5,"tableFee":0,"type":"loss"}`)
		require.NoError(t, p.Parse())
		assert.True(t, p.IsJSON())
		assert.Equal(t, records.FormInput{Date: "2026-01-05", Type: "loss", Amount: "12.5", TableFee: "0"}, p.FormInput())
	})

	t.Run("form encoded", func(t *testing.T) {
		p := parserFor(t, "application/x-www-form-urlencoded", "amount=+300+&stakes=%E5%85%B6%E4%BB%96&customStakes=200%2F50")
		require.NoError(t, p.Parse())
		assert.False(t, p.IsJSON())
		f := p.FormInput()
		assert.Equal(t, "300", f.Amount)
		assert.Equal(t, core.OtherStake, f.Stakes)
		assert.Equal(t, "200/50", f.CustomStakes)
	})

	t.Run("control characters stripped", func(t *testing.T) {
		p := parserFor(t, "application/json", `{"customStakes":"a\u0000b"}`)
		require.NoError(t, p.Parse())
		assert.Equal(t, "ab", p.Get("customStakes"))
	})

	t.Run("array rejected", func(t *testing.T) {
		p := parserFor(t, "application/json", `[1,2]`)
		assert.Error(t, p.Parse())
	})

	t.Run("empty body", func(t *testing.T) {
		p := parserFor(t, "", "")
		require.NoError(t, p.Parse())
		assert.Equal(t, "", p.Get("amount"))
	})
}

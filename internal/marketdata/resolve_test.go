package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{name: "plain name untouched", query: "Infosys", want: "Infosys"},
		{name: "dcf prefix", query: "build a DCF for Infosys", want: "Infosys"},
		{name: "lbo prefix", query: "build lbo for Tata Motors", want: "Tata Motors"},
		{name: "research prefix", query: "research Apple", want: "Apple"},
		{name: "tell me about", query: "tell me about Reliance", want: "Reliance"},
		{name: "model suffix", query: "Infosys DCF model", want: "Infosys"},
		{name: "analysis suffix", query: "Microsoft analysis", want: "Microsoft"},
		{name: "prefix and suffix", query: "analyse Wipro valuation", want: "Wipro"},
		{name: "longest prefix wins", query: "build a dcf model for HCL", want: "HCL"},
		{name: "whitespace trimmed", query: "  nvidia  ", want: "nvidia"},
		{name: "empty stays empty", query: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanQuery(tt.query))
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantTicker string
		wantIndian bool
		wantOK     bool
	}{
		{name: "indian short name", query: "Infosys", wantTicker: "INFY.NS", wantIndian: true, wantOK: true},
		{name: "indian alias", query: "infy", wantTicker: "INFY.NS", wantIndian: true, wantOK: true},
		{name: "indian two word", query: "tata consultancy", wantTicker: "TCS.NS", wantIndian: true, wantOK: true},
		{name: "global", query: "Apple", wantTicker: "AAPL", wantIndian: false, wantOK: true},
		{name: "global alias", query: "facebook", wantTicker: "META", wantIndian: false, wantOK: true},
		{name: "case insensitive", query: "NETFLIX", wantTicker: "NFLX", wantIndian: false, wantOK: true},
		{name: "embedded in sentence", query: "infosys limited", wantTicker: "INFY.NS", wantIndian: true, wantOK: true},
		{name: "unknown", query: "Acme Rocket Skates", wantOK: false},
		{name: "empty", query: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticker, isIndian, ok := Resolve(tt.query)
			require.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantTicker, ticker)
			assert.Equal(t, tt.wantIndian, isIndian)
		})
	}
}

func TestResolvePrefersLongestKey(t *testing.T) {
	// "tata consultancy services" contains both "tata consultancy" and
	// shorter keys; the longest match must win every run.
	for i := 0; i < 50; i++ {
		ticker, isIndian, ok := Resolve("tata consultancy services")
		require.True(t, ok)
		require.True(t, isIndian)
		require.Equal(t, "TCS.NS", ticker)
	}
}

func TestPeers(t *testing.T) {
	t.Run("mapped ticker", func(t *testing.T) {
		peers := Peers("INFY.NS", true)
		assert.Equal(t, []string{"TCS.NS", "WIPRO.NS", "HCLTECH.NS", "TECHM.NS", "MPHASIS.NS"}, peers)
	})

	t.Run("unmapped indian falls back to large caps", func(t *testing.T) {
		peers := Peers("DMART.NS", true)
		require.Len(t, peers, 5)
		assert.Contains(t, peers, "TCS.NS")
	})

	t.Run("unmapped global falls back to large caps", func(t *testing.T) {
		peers := Peers("ZZZZ", false)
		require.Len(t, peers, 5)
		assert.Contains(t, peers, "AAPL")
	})
}

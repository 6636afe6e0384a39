package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	quoteSummaryModules = "price,summaryDetail,financialData,defaultKeyStatistics,incomeStatementHistory,assetProfile"

	// Upstream is a public endpoint; keep request rates polite.
	fetchRateLimit = 2 // requests per second
	fetchBurst     = 4
)

// YahooClient fetches company financials from a Yahoo-compatible quote API.
// It implements Fetcher.
type YahooClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewYahooClient creates a fetcher against baseURL with a bounded per-request
// timeout.
func NewYahooClient(baseURL string, timeout time.Duration, logger *zap.Logger) *YahooClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &YahooClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(fetchRateLimit), fetchBurst),
		logger:     logger,
	}
}

// Fetch resolves the query to a ticker and pulls quote and history data.
// An unreachable or empty upstream yields Found=false, never an error.
func (c *YahooClient) Fetch(ctx context.Context, query string) (*CompanyData, error) {
	name := CleanQuery(query)
	ticker, isIndian, ok := Resolve(name)
	if !ok {
		// Last resort: treat the query itself as a ticker symbol.
		ticker = strings.ToUpper(name)
		isIndian = strings.HasSuffix(ticker, ".NS") || strings.HasSuffix(ticker, ".BO")
	}

	data, err := c.fetchSummary(ctx, ticker, isIndian)
	if err != nil {
		c.logger.Warn("quote summary fetch failed",
			zap.String("ticker", ticker), zap.Error(err))
		return &CompanyData{Found: false, CompanyName: name}, nil
	}
	if !data.Found {
		data.CompanyName = name
		return data, nil
	}

	if peers := c.fetchPeers(ctx, ticker, isIndian); len(peers) > 0 {
		data.Peers = peers
	}
	return data, nil
}

// rawValue is Yahoo's number wrapper: {"raw": 123.4, "fmt": "123.4"}.
type rawValue struct {
	Raw float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				LongName           string   `json:"longName"`
				ShortName          string   `json:"shortName"`
				Currency           string   `json:"currency"`
				RegularMarketPrice rawValue `json:"regularMarketPrice"`
				MarketCap          rawValue `json:"marketCap"`
			} `json:"price"`
			SummaryDetail struct {
				Beta        rawValue `json:"beta"`
				TrailingPE  rawValue `json:"trailingPE"`
				PriceToBook rawValue `json:"priceToBook"`
			} `json:"summaryDetail"`
			FinancialData struct {
				TotalDebt rawValue `json:"totalDebt"`
				TotalCash rawValue `json:"totalCash"`
			} `json:"financialData"`
			DefaultKeyStatistics struct {
				SharesOutstanding rawValue `json:"sharesOutstanding"`
				Beta              rawValue `json:"beta"`
				PriceToBook       rawValue `json:"priceToBook"`
			} `json:"defaultKeyStatistics"`
			AssetProfile struct {
				Sector   string `json:"sector"`
				Industry string `json:"industry"`
			} `json:"assetProfile"`
			IncomeStatementHistory struct {
				Statements []struct {
					TotalRevenue    rawValue `json:"totalRevenue"`
					EBIT            rawValue `json:"ebit"`
					OperatingIncome rawValue `json:"operatingIncome"`
					NetIncome       rawValue `json:"netIncome"`
				} `json:"incomeStatementHistory"`
			} `json:"incomeStatementHistory"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

func (c *YahooClient) fetchSummary(ctx context.Context, ticker string, isIndian bool) (*CompanyData, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s",
		c.baseURL, url.PathEscape(ticker), quoteSummaryModules)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp quoteSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse quote summary: %w", err)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return &CompanyData{Found: false}, nil
	}

	r := resp.QuoteSummary.Result[0]
	if r.Price.RegularMarketPrice.Raw == 0 {
		return &CompanyData{Found: false}, nil
	}

	name := r.Price.LongName
	if name == "" {
		name = r.Price.ShortName
	}
	if name == "" {
		name = ticker
	}

	// Indian listings are reported in crores, others in millions.
	divisor := 1e6
	currency := r.Price.Currency
	if isIndian {
		divisor = 1e7
		currency = "INR"
	}
	if currency == "" {
		currency = "USD"
	}

	beta := r.SummaryDetail.Beta.Raw
	if beta == 0 {
		beta = r.DefaultKeyStatistics.Beta.Raw
	}
	pb := r.SummaryDetail.PriceToBook.Raw
	if pb == 0 {
		pb = r.DefaultKeyStatistics.PriceToBook.Raw
	}

	data := &CompanyData{
		Found:             true,
		Source:            "Yahoo Finance",
		CompanyName:       name,
		Ticker:            ticker,
		Sector:            orUnknown(r.AssetProfile.Sector),
		Industry:          orUnknown(r.AssetProfile.Industry),
		Currency:          currency,
		IsIndian:          isIndian,
		CurrentPrice:      r.Price.RegularMarketPrice.Raw,
		MarketCap:         round1(r.Price.MarketCap.Raw / divisor),
		Beta:              beta,
		PERatio:           round1(r.SummaryDetail.TrailingPE.Raw),
		PBRatio:           round1(pb),
		TotalDebt:         round1(r.FinancialData.TotalDebt.Raw / divisor),
		Cash:              round1(r.FinancialData.TotalCash.Raw / divisor),
		SharesOutstanding: round1(r.DefaultKeyStatistics.SharesOutstanding.Raw / 1e6),
	}

	// Statements arrive most recent first, matching our history ordering.
	for _, st := range r.IncomeStatementHistory.Statements {
		if st.TotalRevenue.Raw != 0 {
			data.RevenueHistory = append(data.RevenueHistory, round1(st.TotalRevenue.Raw/divisor))
		}
		// EBIT stands in for EBITDA when the feed has no D&A breakout;
		// operating income is the second-choice proxy.
		ebitda := st.EBIT.Raw
		if ebitda == 0 {
			ebitda = st.OperatingIncome.Raw
		}
		if ebitda != 0 {
			data.EBITDAHistory = append(data.EBITDAHistory, round1(ebitda/divisor))
		}
		if st.NetIncome.Raw != 0 {
			data.NetIncomeHistory = append(data.NetIncomeHistory, round1(st.NetIncome.Raw/divisor))
		}
	}

	return data, nil
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol              string  `json:"symbol"`
			ShortName           string  `json:"shortName"`
			MarketCap           float64 `json:"marketCap"`
			TrailingPE          float64 `json:"trailingPE"`
			PriceToBook         float64 `json:"priceToBook"`
			RegularMarketPrice  float64 `json:"regularMarketPrice"`
			RevenueGrowthTTM    float64 `json:"revenueGrowth"`
			EbitdaMarginsTTM    float64 `json:"ebitdaMargins"`
			ReturnOnEquityTTM   float64 `json:"returnOnEquity"`
			EnterpriseToEbitda  float64 `json:"enterpriseToEbitda"`
			EnterpriseToRevenue float64 `json:"enterpriseToRevenue"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

// fetchPeers pulls a comparable-company batch quote. Peer data is additive;
// any failure just means an empty COMPS sheet.
func (c *YahooClient) fetchPeers(ctx context.Context, ticker string, isIndian bool) []PeerSnapshot {
	tickers := Peers(ticker, isIndian)
	if len(tickers) > 5 {
		tickers = tickers[:5]
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil
	}

	endpoint := fmt.Sprintf("%s/v7/finance/quote?symbols=%s",
		c.baseURL, url.QueryEscape(strings.Join(tickers, ",")))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		c.logger.Warn("peer fetch skipped", zap.Error(err))
		return nil
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Warn("peer response parse failed", zap.Error(err))
		return nil
	}

	var peers []PeerSnapshot
	for _, r := range resp.QuoteResponse.Result {
		if r.RegularMarketPrice == 0 {
			continue
		}
		divisor := 1e6
		if strings.HasSuffix(r.Symbol, ".NS") || strings.HasSuffix(r.Symbol, ".BO") {
			divisor = 1e7
		}
		name := r.ShortName
		if name == "" {
			name = r.Symbol
		}
		peers = append(peers, PeerSnapshot{
			Name:          name,
			Ticker:        r.Symbol,
			MarketCap:     round1(r.MarketCap / divisor),
			EVEBITDA:      round1(r.EnterpriseToEbitda),
			PERatio:       round1(r.TrailingPE),
			EVRevenue:     round1(r.EnterpriseToRevenue),
			RevenueGrowth: round1(r.RevenueGrowthTTM * 100),
			EBITDAMargin:  round1(r.EbitdaMarginsTTM * 100),
			ROE:           round1(r.ReturnOnEquityTTM * 100),
		})
	}
	return peers
}

func (c *YahooClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "modeld/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned %d: %s", resp.StatusCode, truncate(string(body), 120))
	}
	return body, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func round1(v float64) float64 {
	if v < 0 {
		return float64(int64(v*10-0.5)) / 10
	}
	return float64(int64(v*10+0.5)) / 10
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ Fetcher = (*YahooClient)(nil)

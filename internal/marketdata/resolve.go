package marketdata

import (
	"sort"
	"strings"
)

// indianCompanies maps common names to NSE tickers.
var indianCompanies = map[string]string{
	"infosys": "INFY.NS", "infy": "INFY.NS",
	"tcs": "TCS.NS", "tata consultancy": "TCS.NS",
	"wipro":         "WIPRO.NS",
	"hcl":           "HCLTECH.NS",
	"hcltech":       "HCLTECH.NS",
	"tech mahindra": "TECHM.NS", "techm": "TECHM.NS",
	"reliance": "RELIANCE.NS", "ril": "RELIANCE.NS",
	"hdfc bank": "HDFCBANK.NS", "hdfc": "HDFCBANK.NS",
	"icici bank": "ICICIBANK.NS", "icici": "ICICIBANK.NS",
	"sbi": "SBIN.NS", "state bank": "SBIN.NS",
	"kotak": "KOTAKBANK.NS", "kotak mahindra": "KOTAKBANK.NS",
	"axis bank": "AXISBANK.NS", "axis": "AXISBANK.NS",
	"bajaj finance": "BAJFINANCE.NS", "bajaj": "BAJFINANCE.NS",
	"tata motors": "TATAMOTORS.NS", "tatamotors": "TATAMOTORS.NS",
	"tata steel":    "TATASTEEL.NS",
	"adani":         "ADANIENT.NS",
	"ongc":          "ONGC.NS",
	"ntpc":          "NTPC.NS",
	"itc":           "ITC.NS",
	"airtel":        "BHARTIARTL.NS",
	"bharti airtel": "BHARTIARTL.NS",
	"maruti":        "MARUTI.NS", "maruti suzuki": "MARUTI.NS",
	"sun pharma": "SUNPHARMA.NS", "sun pharmaceutical": "SUNPHARMA.NS",
	"dr reddy":           "DRREDDY.NS",
	"cipla":              "CIPLA.NS",
	"asian paints":       "ASIANPAINT.NS",
	"hindustan unilever": "HINDUNILVR.NS", "hul": "HINDUNILVR.NS",
	"nestle":    "NESTLEIND.NS",
	"titan":     "TITAN.NS",
	"ultratech": "ULTRACEMCO.NS", "ultratech cement": "ULTRACEMCO.NS",
	"l&t": "LT.NS", "larsen": "LT.NS",
	"jsw steel":        "JSWSTEEL.NS",
	"hindalco":         "HINDALCO.NS",
	"vedanta":          "VEDL.NS",
	"power grid":       "POWERGRID.NS",
	"coal india":       "COALINDIA.NS",
	"divis":            "DIVISLAB.NS",
	"divis labs":       "DIVISLAB.NS",
	"eicher motors":    "EICHERMOT.NS",
	"hero motocorp":    "HEROMOTOCO.NS",
	"britannia":        "BRITANNIA.NS",
	"grasim":           "GRASIM.NS",
	"indusind bank":    "INDUSINDBK.NS",
	"shree cement":     "SHREECEM.NS",
	"apollo hospitals": "APOLLOHOSP.NS",
	"dmart":            "DMART.NS", "avenue supermarts": "DMART.NS",
	"pidilite":        "PIDILITIND.NS",
	"berger paints":   "BERGEPAINT.NS",
	"havells":         "HAVELLS.NS",
	"muthoot finance": "MUTHOOTFIN.NS",
	"page industries": "PAGEIND.NS",
	"info edge":       "NAUKRI.NS", "naukri": "NAUKRI.NS",
	"zomato": "ZOMATO.NS",
	"paytm":  "PAYTM.NS", "one97": "PAYTM.NS",
	"nykaa": "NYKAA.NS",
}

// globalCompanies maps common names to US/global tickers.
var globalCompanies = map[string]string{
	"apple": "AAPL", "microsoft": "MSFT", "google": "GOOGL",
	"alphabet": "GOOGL", "amazon": "AMZN", "tesla": "TSLA",
	"meta": "META", "facebook": "META", "netflix": "NFLX",
	"nvidia": "NVDA", "amd": "AMD", "intel": "INTC",
	"salesforce": "CRM", "oracle": "ORCL", "sap": "SAP",
	"jpmorgan": "JPM", "jp morgan": "JPM", "goldman": "GS",
	"morgan stanley": "MS", "bank of america": "BAC",
	"walmart": "WMT", "target": "TGT", "costco": "COST",
	"disney": "DIS", "nike": "NKE", "coca cola": "KO",
	"pepsi": "PEP", "mcdonalds": "MCD", "starbucks": "SBUX",
	"johnson": "JNJ", "pfizer": "PFE", "abbvie": "ABBV",
	"exxon": "XOM", "chevron": "CVX", "shell": "SHEL",
	"berkshire": "BRK-B", "visa": "V", "mastercard": "MA",
	"paypal": "PYPL", "uber": "UBER", "lyft": "LYFT",
	"airbnb": "ABNB", "spotify": "SPOT",
	"snap": "SNAP", "pinterest": "PINS",
}

// peerMap lists comparable-company tickers for COMPS analysis.
var peerMap = map[string][]string{
	"INFY.NS":       {"TCS.NS", "WIPRO.NS", "HCLTECH.NS", "TECHM.NS", "MPHASIS.NS"},
	"TCS.NS":        {"INFY.NS", "WIPRO.NS", "HCLTECH.NS", "TECHM.NS", "LTI.NS"},
	"WIPRO.NS":      {"INFY.NS", "TCS.NS", "HCLTECH.NS", "TECHM.NS", "MPHASIS.NS"},
	"RELIANCE.NS":   {"ONGC.NS", "IOC.NS", "BPCL.NS", "HPCL.NS", "GAIL.NS"},
	"HDFCBANK.NS":   {"ICICIBANK.NS", "SBIN.NS", "KOTAKBANK.NS", "AXISBANK.NS", "INDUSINDBK.NS"},
	"ICICIBANK.NS":  {"HDFCBANK.NS", "SBIN.NS", "KOTAKBANK.NS", "AXISBANK.NS", "BANDHANBNK.NS"},
	"TATAMOTORS.NS": {"MARUTI.NS", "M&M.NS", "EICHERMOT.NS", "HEROMOTOCO.NS", "BAJAJ-AUTO.NS"},
	"AAPL":          {"MSFT", "GOOGL", "META", "AMZN", "NVDA"},
	"MSFT":          {"AAPL", "GOOGL", "META", "AMZN", "ORCL"},
	"GOOGL":         {"AAPL", "MSFT", "META", "AMZN", "NFLX"},
	"NVDA":          {"AMD", "INTC", "QCOM", "TSM", "AVGO"},
	"TSLA":          {"GM", "F", "RIVN", "NIO", "STLA"},
}

// queryPrefixes are chat-style lead-ins stripped from research queries,
// matched longest first.
var queryPrefixes = []string{
	"analyse ", "analyze ", "build a dcf for ", "build dcf for ",
	"build a lbo for ", "build lbo for ", "build a 3-statement for ",
	"build 3-statement for ", "build a fpa for ", "build fpa for ",
	"build a model for ", "build model for ", "create a model for ",
	"create dcf for ", "dcf for ", "lbo for ", "model for ",
	"research ", "tell me about ", "what about ", "analyse and build ",
	"build a dcf model for ", "build dcf model for ",
	"build a ", "create a ",
	"give me a dcf for ", "give me ", "show me ",
}

// querySuffixes are trailing model-type mentions stripped from queries,
// matched longest first.
var querySuffixes = []string{
	" dcf model", " lbo model", " 3-statement model", " fpa model",
	" model", " analysis", " valuation", " and build a dcf",
	" and build dcf", " dcf", " lbo",
}

// CleanQuery extracts a plain company name from a chat-style request, e.g.
// "build a DCF for Infosys" -> "Infosys".
func CleanQuery(query string) string {
	query = strings.TrimSpace(query)

	prefixes := append([]string(nil), queryPrefixes...)
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	lower := strings.ToLower(query)
	for _, prefix := range prefixes {
		if strings.HasPrefix(lower, prefix) {
			query = strings.TrimSpace(query[len(prefix):])
			lower = strings.ToLower(query)
			break
		}
	}

	suffixes := append([]string(nil), querySuffixes...)
	sort.Slice(suffixes, func(i, j int) bool { return len(suffixes[i]) > len(suffixes[j]) })
	for _, suffix := range suffixes {
		if strings.HasSuffix(lower, suffix) {
			query = strings.TrimSpace(query[:len(query)-len(suffix)])
			break
		}
	}

	return strings.TrimSpace(query)
}

// Resolve maps a cleaned company name to a ticker. Indian listings are
// checked first; returns ("", false, false) when no table matches.
func Resolve(name string) (ticker string, isIndian bool, ok bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return "", false, false
	}
	// Map iteration order is random; take the longest matching key so
	// "tata consultancy" beats "tcs"-style partials deterministically.
	if t := matchLongest(indianCompanies, lower); t != "" {
		return t, true, true
	}
	if t := matchLongest(globalCompanies, lower); t != "" {
		return t, false, true
	}
	return "", false, false
}

func matchLongest(table map[string]string, lower string) string {
	best := ""
	bestLen := -1
	for key, ticker := range table {
		if strings.Contains(lower, key) || strings.Contains(key, lower) {
			if len(key) > bestLen {
				best = ticker
				bestLen = len(key)
			}
		}
	}
	return best
}

// Peers returns comparable-company tickers for a ticker, falling back to a
// default large-cap set when the ticker is unmapped.
func Peers(ticker string, isIndian bool) []string {
	if peers, ok := peerMap[ticker]; ok {
		return peers
	}
	for key, peers := range peerMap {
		if strings.Contains(ticker, key) || strings.Contains(key, ticker) {
			return peers
		}
	}
	if isIndian {
		return []string{"TCS.NS", "INFY.NS", "WIPRO.NS", "HCLTECH.NS", "TECHM.NS"}
	}
	return []string{"AAPL", "MSFT", "GOOGL", "AMZN", "META"}
}

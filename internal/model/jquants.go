package model

import "sort"

// ListedInfo is one row of the J-Quants listed-issue master.
type ListedInfo struct {
	Code             string `json:"Code"`
	CompanyName      string `json:"CompanyName"`
	MarketCode       string `json:"MarketCode"`
	Sector17Code     string `json:"Sector17Code"`
	Sector33Code     string `json:"Sector33Code"`
	Sector33CodeName string `json:"Sector33CodeName"`
}

// Statement is a financial statement with every figure left as raw text.
type Statement struct {
	DisclosedDate                    string  `json:"DisclosedDate"`
	LocalCode                        string  `json:"LocalCode"`
	TypeOfDocument                   string  `json:"TypeOfDocument"`
	CashFlowsFromOperatingActivities *string `json:"CashFlowsFromOperatingActivities"`
	CashFlowsFromInvestingActivities *string `json:"CashFlowsFromInvestingActivities"`
	IssuedShares                     *string `json:"NumberOfIssuedAndOutstandingSharesAtTheEndOfFiscalYearIncludingTreasuryStock"`
	TreasuryShares                   *string `json:"NumberOfTreasuryStockAtTheEndOfFiscalYear"`
	AverageNumberOfShares            *string `json:"AverageNumberOfShares"`
}

// DailyQuote is one J-Quants daily price row.
type DailyQuote struct {
	Code            string   `json:"Code"`
	Date            string   `json:"Date"`
	Open            *float64 `json:"Open"`
	High            *float64 `json:"High"`
	Low             *float64 `json:"Low"`
	Close           *float64 `json:"Close"`
	Volume          *float64 `json:"Volume"`
	AdjustmentClose *float64 `json:"AdjustmentClose"`
}

// Sector33 is a TSE 33-industry classification.
type Sector33 struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ExtractSectors lists the distinct 33-industry sectors, excluding 9999 (ETF/other), by code.
func ExtractSectors(infos []ListedInfo) []Sector33 {
	names := make(map[string]string)
	for _, info := range infos {
		if info.Sector33Code == "" || info.Sector33Code == "9999" {
			continue
		}
		names[info.Sector33Code] = info.Sector33CodeName
	}
	out := make([]Sector33, 0, len(names))
	for code, name := range names {
		out = append(out, Sector33{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

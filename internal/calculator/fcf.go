package calculator

import (
	"math"
	"sort"

	"YuutaiSentinel/internal/model"
)

// FCFYield returns (operatingCF + investingCF) / (shares * price) * 100,
// or nil when the market cap is not positive or the yield is not finite.
func FCFYield(operatingCF, investingCF, shares, price float64) *float64 {
	mcap := shares * price
	if !(mcap > 0) || math.IsInf(mcap, 0) {
		return nil
	}
	y := (operatingCF + investingCF) / mcap * 100
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return nil
	}
	return &y
}

// FCFFromStatement builds a yield record from one statement and a price.
// With subtractTreasury the share count is issued minus treasury stock.
// It reports false when a required figure is missing or the yield is undefined.
func FCFFromStatement(stmt model.Statement, price float64, subtractTreasury bool) (model.FCFYieldRecord, bool) {
	op := ParseNumericField(stmt.CashFlowsFromOperatingActivities)
	inv := ParseNumericField(stmt.CashFlowsFromInvestingActivities)
	shares := ParseNumericField(stmt.IssuedShares)
	if op == nil || inv == nil || shares == nil {
		return model.FCFYieldRecord{}, false
	}
	n := *shares
	if subtractTreasury {
		treasury := ParseNumericField(stmt.TreasuryShares)
		if treasury == nil {
			return model.FCFYieldRecord{}, false
		}
		n -= *treasury
	}
	y := FCFYield(*op, *inv, n, price)
	if y == nil {
		return model.FCFYieldRecord{}, false
	}
	return model.FCFYieldRecord{
		Code:              stmt.LocalCode,
		DisclosedDate:     stmt.DisclosedDate,
		OperatingCashFlow: *op,
		InvestingCashFlow: *inv,
		SharesOutstanding: n,
		ClosingPrice:      price,
		FCFYieldPercent:   *y,
	}, true
}

// LatestCompleteStatement picks the most recently disclosed statement whose
// cash-flow and share figures all parse.
func LatestCompleteStatement(stmts []model.Statement) (model.Statement, bool) {
	sorted := make([]model.Statement, len(stmts))
	copy(sorted, stmts)
	// DisclosedDate is YYYY-MM-DD, so string order is date order.
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].DisclosedDate > sorted[j].DisclosedDate })
	for _, s := range sorted {
		if ParseNumericField(s.CashFlowsFromOperatingActivities) != nil &&
			ParseNumericField(s.CashFlowsFromInvestingActivities) != nil &&
			ParseNumericField(s.IssuedShares) != nil {
			return s, true
		}
	}
	return model.Statement{}, false
}

// SortByYield orders records by yield, highest first.
func SortByYield(records []model.FCFYieldRecord) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].FCFYieldPercent > records[j].FCFYieldPercent })
}

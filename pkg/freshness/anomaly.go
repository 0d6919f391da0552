package freshness

import "context"

// AnomalyCheck is a registered, typed anomaly-check function (spec.md
// section 9: dynamic dispatch is replaced by a registered set of typed
// functions returning a common AnomalyResult sum type).
type AnomalyCheck func(ctx context.Context, input AnomalyInput) AnomalyResult

// AnomalyInput is the tenant-scoped metric series a check evaluates. Not
// every field is used by every check.
type AnomalyInput struct {
	TenantID      string
	SourceType    string
	TodayRowCount int
	YesterdayRowCount int
	TodaySpend    float64
	YesterdaySpend float64
	TodayOrders   int
	YesterdayOrders int
	MissingDays   int
	NegativeFieldHits map[string]int
	DuplicatePrimaryKeys int
	RevenueDirection int // +1 up, -1 down, 0 flat
	SpendDirection   int
}

// Registry is the fixed set of anomaly checks run per tenant/source.
var Registry = map[string]AnomalyCheck{
	"row_count_drop":        RowCountDropCheck,
	"zero_spend_after_nonzero": ZeroSpendCheck,
	"zero_orders_after_nonzero": ZeroOrdersCheck,
	"missing_days":          MissingDaysCheck,
	"negative_values":       NegativeValuesCheck,
	"duplicate_primary_keys": DuplicatePrimaryKeysCheck,
	"revenue_spend_divergence": DivergenceCheck,
}

// RunAll executes every registered check and returns only the anomalies.
func RunAll(ctx context.Context, input AnomalyInput) []AnomalyResult {
	var out []AnomalyResult
	for name, check := range Registry {
		r := check(ctx, input)
		r.CheckName = name
		if r.IsAnomaly {
			out = append(out, r)
		}
	}
	return out
}

func RowCountDropCheck(_ context.Context, in AnomalyInput) AnomalyResult {
	if in.YesterdayRowCount == 0 {
		return AnomalyResult{}
	}
	dropRatio := 1 - float64(in.TodayRowCount)/float64(in.YesterdayRowCount)
	if dropRatio < 0.5 {
		return AnomalyResult{}
	}
	severity := SeverityWarning
	if dropRatio >= 0.75 {
		severity = SeverityHigh
	}
	return AnomalyResult{
		IsAnomaly:       true,
		Severity:        severity,
		Observed:        float64(in.TodayRowCount),
		Expected:        float64(in.YesterdayRowCount),
		MerchantMessage: "today's data volume looks unusually low",
		SupportDetails:  "row count dropped below expected volume for this source",
	}
}

func ZeroSpendCheck(_ context.Context, in AnomalyInput) AnomalyResult {
	if in.YesterdaySpend > 0 && in.TodaySpend == 0 {
		return AnomalyResult{
			IsAnomaly:       true,
			Severity:        SeverityHigh,
			Observed:        0,
			Expected:        in.YesterdaySpend,
			MerchantMessage: "no ad spend was recorded today",
			SupportDetails:  "spend dropped to zero after a nonzero prior day",
		}
	}
	return AnomalyResult{}
}

func ZeroOrdersCheck(_ context.Context, in AnomalyInput) AnomalyResult {
	if in.YesterdayOrders > 0 && in.TodayOrders == 0 {
		return AnomalyResult{
			IsAnomaly:       true,
			Severity:        SeverityCritical,
			Observed:        0,
			Expected:        float64(in.YesterdayOrders),
			MerchantMessage: "no orders were recorded today",
			SupportDetails:  "order count dropped to zero after a nonzero prior day",
		}
	}
	return AnomalyResult{}
}

func MissingDaysCheck(_ context.Context, in AnomalyInput) AnomalyResult {
	if in.MissingDays <= 3 {
		return AnomalyResult{}
	}
	return AnomalyResult{
		IsAnomaly:       true,
		Severity:        SeverityHigh,
		Observed:        float64(in.MissingDays),
		Expected:        0,
		MerchantMessage: "some recent days are missing from this report",
		SupportDetails:  "time series has gaps beyond the tolerated window",
	}
}

func NegativeValuesCheck(_ context.Context, in AnomalyInput) AnomalyResult {
	total := 0
	for _, n := range in.NegativeFieldHits {
		total += n
	}
	if total == 0 {
		return AnomalyResult{}
	}
	return AnomalyResult{
		IsAnomaly:       true,
		Severity:        SeverityWarning,
		Observed:        float64(total),
		Expected:        0,
		MerchantMessage: "some figures in this report look inconsistent",
		SupportDetails:  "negative values found in fields that must be non-negative",
	}
}

func DuplicatePrimaryKeysCheck(_ context.Context, in AnomalyInput) AnomalyResult {
	if in.DuplicatePrimaryKeys == 0 {
		return AnomalyResult{}
	}
	return AnomalyResult{
		IsAnomaly:       true,
		Severity:        SeverityHigh,
		Observed:        float64(in.DuplicatePrimaryKeys),
		Expected:        0,
		MerchantMessage: "some records may be duplicated in this report",
		SupportDetails:  "duplicate primary keys detected in source table",
	}
}

// DivergenceCheck compares revenue direction to spend direction and flags
// opposite moves (spec.md 4.4).
func DivergenceCheck(_ context.Context, in AnomalyInput) AnomalyResult {
	if in.RevenueDirection == 0 || in.SpendDirection == 0 {
		return AnomalyResult{}
	}
	if in.RevenueDirection == in.SpendDirection {
		return AnomalyResult{}
	}
	return AnomalyResult{
		IsAnomaly:       true,
		Severity:        SeverityWarning,
		Observed:        float64(in.RevenueDirection),
		Expected:        float64(in.SpendDirection),
		MerchantMessage: "revenue and spend moved in opposite directions",
		SupportDetails:  "revenue/spend divergence exceeded threshold for this currency",
	}
}

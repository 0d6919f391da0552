package freshness

// StaleSeverity computes incident severity for a stale connector from
// spec.md 4.4: ratio = minutesOverThreshold / threshold; <=2x -> warning,
// <=4x -> high, >4x OR critical source -> critical.
func StaleSeverity(minutesOverThreshold, thresholdMinutes int, isCriticalSource bool) IncidentSeverity {
	if isCriticalSource {
		return SeverityCritical
	}
	if thresholdMinutes <= 0 {
		return SeverityCritical
	}

	ratio := float64(minutesOverThreshold) / float64(thresholdMinutes)
	switch {
	case ratio <= 2:
		return SeverityWarning
	case ratio <= 4:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// criticalSources are the config-declared sources whose staleness is
// always critical (spec.md 4.4 default: Shopify orders, refunds).
var criticalSources = map[string]bool{
	"shopify_orders":  true,
	"shopify_refunds": true,
}

// IsCriticalSource reports whether sourceKey is config-declared critical.
func IsCriticalSource(sourceKey string) bool {
	return criticalSources[sourceKey]
}

// BlockBannerCopy deterministically derives the scope/ETA strings a
// blocking incident shows on dashboards, from severity and source name
// (spec.md 4.4: "scope and ETA strings derived deterministically from
// severity and source name").
func BlockBannerCopy(severity IncidentSeverity, sourceName string) (scope, eta string) {
	scope = sourceName + " data may be incomplete"
	switch severity {
	case SeverityCritical:
		return scope, "investigating — no ETA yet"
	case SeverityHigh:
		return scope, "expected resolution within 4 hours"
	default:
		return scope, "expected resolution within 24 hours"
	}
}

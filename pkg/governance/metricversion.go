package governance

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
)

// MetricVersionResolver implements spec.md 4.8.2: sunset is a hard block,
// deprecated is a warning that carries days_until_sunset, and crossing the
// configured warn-before-sunset window upgrades that warning to block
// level even while the version is merely deprecated, not yet sunset.
type MetricVersionResolver struct {
	Config map[string]MetricVersionConfig // keyed by metric_key
}

func NewMetricVersionResolver(config map[string]MetricVersionConfig) *MetricVersionResolver {
	return &MetricVersionResolver{Config: config}
}

// Resolve decides whether requestedVersion may be used for metricKey as of
// now. An empty requestedVersion resolves against current_version.
func (r *MetricVersionResolver) Resolve(metricKey, requestedVersion string, now time.Time) MetricResolution {
	cfg, ok := r.Config[metricKey]
	if !ok {
		return MetricResolution{Resolved: false, Level: WarningBlock, Message: fmt.Sprintf("unknown metric %q", metricKey)}
	}

	version := requestedVersion
	if version == "" {
		version = cfg.CurrentVersion
	}

	if containsVersion(cfg.SunsetVersions, version) {
		return MetricResolution{
			Resolved: false,
			Level:    WarningBlock,
			Message:  fmt.Sprintf("metric %q version %q is sunset", metricKey, version),
		}
	}

	// The sunset date check is explicit and independent of the status
	// lists: a version can be pushed past its configured sunset date
	// before anyone updates sunset_versions.
	if cfg.SunsetDate != nil && !now.Before(*cfg.SunsetDate) {
		return MetricResolution{
			Resolved: false,
			Level:    WarningBlock,
			Message:  fmt.Sprintf("metric %q version %q is past its sunset date", metricKey, version),
		}
	}

	if !containsVersion(cfg.DeprecatedVersions, version) {
		return MetricResolution{Resolved: true, Level: WarningNone}
	}

	if cfg.SunsetDate == nil {
		return MetricResolution{Resolved: true, Level: WarningWarn, Message: fmt.Sprintf("metric %q version %q is deprecated", metricKey, version)}
	}

	daysUntilSunset := int(cfg.SunsetDate.Sub(now).Hours() / 24)
	level := WarningWarn
	if cfg.WarnBeforeSunset > 0 && cfg.SunsetDate.Sub(now) <= cfg.WarnBeforeSunset {
		level = WarningBlock
	}

	return MetricResolution{
		Resolved:        true,
		Level:           level,
		DaysUntilSunset: daysUntilSunset,
		Message:         fmt.Sprintf("metric %q version %q is deprecated, sunsets in %d day(s)", metricKey, version, daysUntilSunset),
	}
}

func containsVersion(versions []string, v string) bool {
	for _, candidate := range versions {
		if candidate == v {
			return true
		}
		if sameSemver(candidate, v) {
			return true
		}
	}
	return false
}

// sameSemver compares two version strings as semver when both parse,
// falling back to false (leaving the exact string match above as the only
// match) when either isn't valid semver — config may mix semver metric
// versions with opaque version tags.
func sameSemver(a, b string) bool {
	va, err := semver.NewVersion(a)
	if err != nil {
		return false
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return false
	}
	return va.Equal(vb)
}

// Package alerting implements the alert & notification engine (C7): rule
// evaluation against TestResults and aggregated reports, rate-limited
// Alert synthesis, templated Notification rendering, multi-channel
// delivery with linear back-off, and hourly retention cleanup.
package alerting

import (
	"time"

	"github.com/qualitymesh/aat-core/pkg/aggregator"
	"github.com/qualitymesh/aat-core/pkg/contracts"
)

// Schedule restricts when a Rule is allowed to fire: an active set of
// weekdays and an optional UTC time-of-day window. A zero-value Schedule
// (no days, no window) is always active.
type Schedule struct {
	Days      map[time.Weekday]bool
	WindowStart string // "HH:MM", empty disables the window check
	WindowEnd   string // "HH:MM"
}

// Active reports whether now falls inside the schedule.
func (s Schedule) Active(now time.Time) bool {
	if len(s.Days) > 0 && !s.Days[now.Weekday()] {
		return false
	}
	if s.WindowStart == "" || s.WindowEnd == "" {
		return true
	}
	start, err1 := time.Parse("15:04", s.WindowStart)
	end, err2 := time.Parse("15:04", s.WindowEnd)
	if err1 != nil || err2 != nil {
		return true
	}
	nowUTC := now.UTC()
	cur := nowUTC.Hour()*60 + nowUTC.Minute()
	from := start.Hour()*60 + start.Minute()
	to := end.Hour()*60 + end.Minute()
	if from <= to {
		return cur >= from && cur <= to
	}
	// Window wraps past midnight.
	return cur >= from || cur <= to
}

// Recipient is one (channel, address) pair a Rule delivers Notifications
// to.
type Recipient struct {
	Channel contracts.NotificationChannel `json:"channel"`
	Address string                        `json:"address"`
}

// Rule is a named trigger: predicates over a TestResult, plus rate
// limiting, recipients and an active schedule.
type Rule struct {
	Name     string
	Enabled  bool
	Severity contracts.AlertSeverity

	AlertTypes         []string // matched against TestResult.TestType and synthetic types below
	PriorityThreshold  contracts.AlertSeverity
	MinQualityScore    *float64
	MaxFailureRate     *float64
	MaxResponseTimeMs  *int64

	Cooldown       time.Duration
	HourlyCap      int
	Schedule       Schedule
	Recipients     []Recipient
}

// severityRank orders AlertSeverity for threshold comparisons.
var severityRank = map[contracts.AlertSeverity]int{
	contracts.SeverityInfo:     0,
	contracts.SeverityWarning:  1,
	contracts.SeverityCritical: 2,
}

// alertTypeTestFailure and alertTypeQualityRegression are synthetic
// alert_type values a Rule can match that aren't raw TestTypes — the
// first covers any failed TestResult, the second a quality score below
// MinQualityScore.
const (
	alertTypeTestFailure       = "TEST_FAILURE"
	alertTypeQualityRegression = "QUALITY_REGRESSION"
)

// Matches reports whether result satisfies every predicate this rule
// defines. An unset predicate (nil pointer, empty slice) is vacuously
// satisfied.
func (r Rule) Matches(result contracts.TestResult) bool {
	if !r.matchesAlertType(result) {
		return false
	}
	if r.MinQualityScore != nil {
		score, ok := scoreOf(result)
		if !ok || score >= *r.MinQualityScore {
			return false
		}
	}
	if r.MaxResponseTimeMs != nil {
		if result.APIResult == nil || result.APIResult.ResponseTimeMs <= *r.MaxResponseTimeMs {
			return false
		}
	}
	return true
}

func (r Rule) matchesAlertType(result contracts.TestResult) bool {
	if len(r.AlertTypes) == 0 {
		return true
	}
	for _, t := range r.AlertTypes {
		switch t {
		case alertTypeTestFailure:
			if !result.Passed {
				return true
			}
		case alertTypeQualityRegression:
			if r.MinQualityScore != nil {
				if score, ok := scoreOf(result); ok && score < *r.MinQualityScore {
					return true
				}
			}
		case string(result.TestType):
			return true
		}
	}
	return false
}

// MatchesReport reports whether an aggregated report's failure rate
// breaches MaxFailureRate. Reports never satisfy per-result predicates
// (MinQualityScore, MaxResponseTimeMs) since those require a single
// TestResult.
func (r Rule) MatchesReport(report aggregator.AggregatedResults) bool {
	if r.MaxFailureRate == nil {
		return false
	}
	failureRate := 1 - report.Overall.PassRate
	return failureRate > *r.MaxFailureRate
}

// MeetsPriority reports whether severity satisfies this rule's
// PriorityThreshold (an unset threshold admits every severity).
func (r Rule) MeetsPriority(severity contracts.AlertSeverity) bool {
	if r.PriorityThreshold == "" {
		return true
	}
	return severityRank[severity] >= severityRank[r.PriorityThreshold]
}

func scoreOf(result contracts.TestResult) (float64, bool) {
	if result.QualityResult != nil {
		return result.QualityResult.OverallScore, true
	}
	if result.Score > 0 || result.Passed {
		return result.Score, true
	}
	return 0, false
}

package alerting

import (
	"fmt"
	"strings"

	"github.com/qualitymesh/aat-core/pkg/contracts"
)

// Template renders a Notification body for one (alert_type, channel)
// pair. Body is a Go text-template-like string using {variable} markers
// rather than {{variable}} — kept intentionally simple since the variable
// set is small and fixed. A details.* or current_values.* variable with no
// value renders as an empty string rather than panicking; a marker naming
// no known variable is kept literally.
type Template struct {
	AlertType string
	Channel   contracts.NotificationChannel
	Body      string
}

// TemplateKey identifies a Template by its (alert_type, channel) pair.
type TemplateKey struct {
	AlertType string
	Channel   contracts.NotificationChannel
}

// TemplateSet resolves a rendering template by exact (alert_type,
// channel) match, falling back to alert_type alone, then to a built-in
// default.
type TemplateSet struct {
	byChannel map[TemplateKey]string
	byType    map[string]string
	fallback  string
}

const defaultTemplateBody = "[{priority}] {title}\n{message}\nsource: {source_service} at {created_at}"

// NewTemplateSet builds an empty TemplateSet using the built-in default
// body until templates are registered.
func NewTemplateSet() *TemplateSet {
	return &TemplateSet{
		byChannel: make(map[TemplateKey]string),
		byType:    make(map[string]string),
		fallback:  defaultTemplateBody,
	}
}

// Register adds a template scoped to both alert_type and channel.
func (ts *TemplateSet) Register(alertType string, channel contracts.NotificationChannel, body string) {
	ts.byChannel[TemplateKey{AlertType: alertType, Channel: channel}] = body
}

// RegisterForType adds a template scoped to alert_type only, used for any
// channel lacking a more specific registration.
func (ts *TemplateSet) RegisterForType(alertType, body string) {
	ts.byType[alertType] = body
}

// Resolve returns the body to render for (alertType, channel): the exact
// match if registered, else the alert_type-only template, else the
// built-in default.
func (ts *TemplateSet) Resolve(alertType string, channel contracts.NotificationChannel) string {
	if body, ok := ts.byChannel[TemplateKey{AlertType: alertType, Channel: channel}]; ok {
		return body
	}
	if body, ok := ts.byType[alertType]; ok {
		return body
	}
	return ts.fallback
}

// Render substitutes {variable} markers in body using alert's standard
// fields plus alert.details.* and alert.current_values.*. A details.* or
// current_values.* variable with no value renders as the empty string.
func Render(body string, alert contracts.Alert, alertType string, currentValues map[string]float64) string {
	vars := map[string]string{
		"alert_id":       alert.ID,
		"alert_type":     alertType,
		"title":          alertTitle(alert),
		"message":        alert.Message,
		"priority":       string(alert.Severity),
		"source_service": alert.SourceID,
		"created_at":     alert.FiredAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	var detailsParts []string
	for k, v := range alert.Labels {
		vars["details."+k] = v
		detailsParts = append(detailsParts, k+"="+v)
	}
	vars["details"] = strings.Join(detailsParts, ", ")
	for k, v := range currentValues {
		vars["current_values."+k] = fmt.Sprintf("%v", v)
	}

	return substitute(body, vars)
}

func alertTitle(alert contracts.Alert) string {
	if alert.RuleName != "" {
		return alert.RuleName
	}
	return "Alert"
}

// substitute replaces every {name} occurrence in body with vars[name],
// or the empty string if name is absent but looksLikeVariable. Other
// braces without a matching variable (or unterminated) are left as-is
// rather than causing an error.
func substitute(body string, vars map[string]string) string {
	var b strings.Builder
	i := 0
	for i < len(body) {
		if body[i] != '{' {
			b.WriteByte(body[i])
			i++
			continue
		}
		end := strings.IndexByte(body[i:], '}')
		if end < 0 {
			b.WriteString(body[i:])
			break
		}
		name := body[i+1 : i+end]
		if value, ok := vars[name]; ok {
			b.WriteString(value)
		} else if looksLikeVariable(name) {
			// recognised variable family with no value for this alert
		} else {
			b.WriteByte('{')
			b.WriteString(name)
			b.WriteByte('}')
		}
		i += end + 1
	}
	return b.String()
}

// looksLikeVariable reports whether name is shaped like one of the
// template's recognised variable families (details.*, current_values.*)
// even when this particular alert has no value for it — such references
// render as empty string, not literal braces.
func looksLikeVariable(name string) bool {
	return strings.HasPrefix(name, "details.") || strings.HasPrefix(name, "current_values.")
}

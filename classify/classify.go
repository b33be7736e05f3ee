// Package classify maps raw inbound payloads to a semantic kind.
//
// Server frames carry no single discriminant field, so classification is a
// fixed-priority chain of structural predicates; the first match wins. Every
// predicate is total: non-object, nil, or otherwise malformed input is
// rejected without faulting and falls through to Unknown.
package classify

// Kind is the semantic category of an inbound message.
type Kind string

const (
	Positions    Kind = "POSITIONS"
	ZoneEvents   Kind = "ZONES_ENTRIES_EVENTS"
	ZoneStats    Kind = "ZONE_STATS_EVENTS"
	Alerts       Kind = "ALERTS"
	Assets       Kind = "ASSETS"
	Confirmation Kind = "CONFIRMATION"
	Unknown      Kind = "UNKNOWN"
)

// classifiers is evaluated in order; shapes overlap, so the order is part of
// the protocol contract: position, zone entry/exit, zone stats, alert, asset,
// confirmation.
var classifiers = []struct {
	kind  Kind
	match func(map[string]any) bool
}{
	{Positions, isPosition},
	{ZoneEvents, isZoneEvent},
	{ZoneStats, isZoneStats},
	{Alerts, isAlert},
	{Assets, isAsset},
	{Confirmation, isConfirmation},
}

// Classify returns the kind of an arbitrary decoded payload. It never panics;
// anything that is not a JSON object classifies as Unknown.
func Classify(payload any) Kind {
	m, ok := payload.(map[string]any)
	if !ok || m == nil {
		return Unknown
	}
	for _, c := range classifiers {
		if c.match(m) {
			return c.kind
		}
	}
	return Unknown
}

func isPosition(m map[string]any) bool {
	if hasTag(m, string(Positions)) {
		return true
	}
	_, hasID := stringField(m, "user_uuid", "userUuid")
	return hasID && hasNumber(m, "lat", "latitude") && hasNumber(m, "lon", "longitude")
}

func isZoneEvent(m map[string]any) bool {
	if hasTag(m, string(ZoneEvents)) {
		return true
	}
	ev, ok := stringField(m, "event_type")
	return ok && (ev == "ENTER_ZONE" || ev == "EXIT_ZONE")
}

func isZoneStats(m map[string]any) bool {
	if hasTag(m, string(ZoneStats)) {
		return true
	}
	_, hasZone := stringField(m, "zone_uuid")
	return hasZone && hasNumber(m, "count")
}

func isAlert(m map[string]any) bool {
	if hasTag(m, string(Alerts)) {
		return true
	}
	if _, ok := stringField(m, "alert_uuid"); ok {
		return true
	}
	_, hasSeverity := stringField(m, "severity")
	_, hasMessage := stringField(m, "message")
	return hasSeverity && hasMessage
}

func isAsset(m map[string]any) bool {
	if hasTag(m, string(Assets)) {
		return true
	}
	_, ok := stringField(m, "asset_uuid")
	return ok
}

// isConfirmation accepts both observed acknowledgment shapes: a payload
// listing the confirmed topics, and a minimal success envelope with no topic
// list.
func isConfirmation(m map[string]any) bool {
	if hasTag(m, "SUBSCRIPTION_SUCCESS") {
		return true
	}
	if _, ok := m["data_type_filter"].([]any); ok {
		return true
	}
	success, ok := m["success"].(bool)
	return ok && success
}

func hasTag(m map[string]any, tag string) bool {
	v, ok := stringField(m, "type")
	return ok && v == tag
}

func stringField(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func hasNumber(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		switch m[k].(type) {
		case float64, int, int64:
			return true
		}
	}
	return false
}

package classify

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return v
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Kind
	}{
		{"empty object", `{}`, Unknown},
		{"position by coordinates", `{"lat":48.8,"lon":2.3,"user_uuid":"x"}`, Positions},
		{"position camel-case id", `{"latitude":48.8,"longitude":2.3,"userUuid":"x"}`, Positions},
		{"position by tag", `{"type":"POSITIONS","payload":{}}`, Positions},
		{"position missing id", `{"lat":48.8,"lon":2.3}`, Unknown},
		{"zone entry", `{"event_type":"ENTER_ZONE"}`, ZoneEvents},
		{"zone exit", `{"event_type":"EXIT_ZONE","zone_uuid":"z1"}`, ZoneEvents},
		{"zone event by tag", `{"type":"ZONES_ENTRIES_EVENTS"}`, ZoneEvents},
		{"zone stats", `{"zone_uuid":"z1","count":7}`, ZoneStats},
		{"zone stats by tag", `{"type":"ZONE_STATS_EVENTS"}`, ZoneStats},
		{"alert by uuid", `{"alert_uuid":"a1"}`, Alerts},
		{"alert by severity", `{"severity":"HIGH","message":"battery low"}`, Alerts},
		{"alert by tag", `{"type":"ALERTS"}`, Alerts},
		{"asset", `{"asset_uuid":"as1","name":"pallet"}`, Assets},
		{"asset by tag", `{"type":"ASSETS"}`, Assets},
		{"confirmation with topics", `{"data_type_filter":["POSITIONS"]}`, Confirmation},
		{"confirmation minimal ack", `{"success":true}`, Confirmation},
		{"confirmation by tag", `{"type":"SUBSCRIPTION_SUCCESS"}`, Confirmation},
		{"failed ack is not a confirmation", `{"success":false}`, Unknown},
		{"unrelated tag", `{"type":"SOMETHING_ELSE"}`, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(decode(t, tt.raw)); got != tt.want {
				t.Errorf("Classify(%s) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

// Classification must be total over arbitrary decoded values, not just objects.
func TestClassify_NonObjectInput(t *testing.T) {
	inputs := []any{nil, "string", 42.0, true, []any{1, 2, 3}, map[string]any(nil)}
	for _, in := range inputs {
		if got := Classify(in); got != Unknown {
			t.Errorf("Classify(%#v) = %s, want UNKNOWN", in, got)
		}
	}
}

// Position outranks zone event when a payload carries both shapes; evaluation
// order is fixed.
func TestClassify_PriorityOrder(t *testing.T) {
	raw := `{"lat":1.0,"lon":2.0,"user_uuid":"x","event_type":"ENTER_ZONE"}`
	if got := Classify(decode(t, raw)); got != Positions {
		t.Errorf("overlapping payload classified as %s, want POSITIONS", got)
	}

	raw = `{"event_type":"ENTER_ZONE","zone_uuid":"z","count":3}`
	if got := Classify(decode(t, raw)); got != ZoneEvents {
		t.Errorf("overlapping payload classified as %s, want ZONES_ENTRIES_EVENTS", got)
	}
}

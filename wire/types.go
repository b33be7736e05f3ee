// Package wire defines the outbound frame formats and protocol constants for
// the Tracelet real-time service.
//
// Inbound frames carry no fixed envelope; see package classify for how they
// are interpreted.
package wire

// Origin values distinguish where a position update was produced.
const (
	// OriginAPI marks positions published through this SDK.
	OriginAPI = "api"

	// OriginDevice marks positions reported by tracked hardware.
	OriginDevice = "device"
)

// Application close codes. The server closes with a code in the auth range
// when the supplied credential is rejected; retrying cannot repair that, so
// these codes must not trigger reconnection.
const (
	CloseAuthFailureMin = 4000
	CloseAuthFailureMax = 4099
)

// AuthFailureCode reports whether a close code falls in the application
// authentication-failure range.
func AuthFailureCode(code int) bool {
	return code >= CloseAuthFailureMin && code <= CloseAuthFailureMax
}

// SubscribeFrame is the outbound subscription request.
type SubscribeFrame struct {
	Type           string   `json:"type"` // always "SUBSCRIBE"
	AppNamespace   string   `json:"app_namespace"`
	DataTypeFilter []string `json:"data_type_filter"`
	MapUUID        string   `json:"map_uuid,omitempty"`
}

// NewSubscribeFrame builds a subscribe request for the given topics.
func NewSubscribeFrame(namespace string, topics []string, mapUUID string) SubscribeFrame {
	return SubscribeFrame{
		Type:           "SUBSCRIBE",
		AppNamespace:   namespace,
		DataTypeFilter: topics,
		MapUUID:        mapUUID,
	}
}

// PositionFrame is the outbound position update.
type PositionFrame struct {
	Lat          float64        `json:"lat"`
	Lon          float64        `json:"lon"`
	UserUUID     string         `json:"user_uuid"` // normalized MAC
	UserName     string         `json:"user_name,omitempty"`
	Color        string         `json:"color,omitempty"`
	Model        string         `json:"model,omitempty"`
	AppNamespace string         `json:"app_namespace"`
	MapUUID      string         `json:"map_uuid"`
	Data         map[string]any `json:"data,omitempty"`
	Origin       string         `json:"origin"`
}

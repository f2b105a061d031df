package dto

// HealthStatus is returned by the health endpoint.
type HealthStatus struct {
	Status      string  `json:"status"`
	ModelLoaded bool    `json:"model_loaded"`
	Device      string  `json:"device"`
	Timestamp   float64 `json:"timestamp"` // seconds since epoch
}

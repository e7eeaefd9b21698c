package transport

// HealthStatus is a provider configuration status.
type HealthStatus string

const (
	HealthConfigured   HealthStatus = "configured"
	HealthUnconfigured HealthStatus = "unconfigured"
	HealthError        HealthStatus = "error"
)

// Health is the result of a transport health check.
type Health struct {
	Status HealthStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// OK reports whether the transport is usable.
func (h Health) OK() bool { return h.Status == HealthConfigured }

package metrics

// Config
type Config struct {
	Addr string
}

// ServiceInfo labels every metric reported by the service.
type ServiceInfo struct {
	Job string
}

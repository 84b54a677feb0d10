package health

import "context"

// DBPinger checks chat-history database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker checks one upstream dependency's availability.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

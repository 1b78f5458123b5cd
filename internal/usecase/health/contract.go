package health

import "context"

// StorePinger checks metadata store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

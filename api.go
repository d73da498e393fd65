package cfddns

import (
	"context"
	"net/netip"
)

// Resolver looks up the address that managed records should point at.
type Resolver interface {
	Resolve(context.Context) (netip.Addr, error)
}

// ResolverFunc adapts an ordinary function to the Resolver interface.
type ResolverFunc func(context.Context) (netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) (netip.Addr, error) {
	return f(ctx)
}

// Registry is the DNS provider holding the managed records.
//
// UpdateRecord reports a rejected update through UpdateResult.
// A non-nil error means the registry could not be reached or did not answer sensibly.
type Registry interface {
	ListZones(ctx context.Context) ([]Zone, error)
	ListRecords(ctx context.Context, zoneID string, recordType string) ([]Record, error)
	UpdateRecord(ctx context.Context, zoneID string, recordID string, update RecordUpdate) (UpdateResult, error)
}

type Zone struct {
	ID   string
	Name string
}

type Record struct {
	ID      string
	Name    string
	Type    string
	Content string
}

type RecordUpdate struct {
	Type    string
	Name    string
	Content string
}

type UpdateResult struct {
	Success bool
	Errors  []ResponseError
}

// ResponseError is a single error entry returned by the registry API.
type ResponseError struct {
	Code    int
	Message string
}

package container

import (
	"context"
	"errors"
	"log"
)

// Removal reports what the executor did.
type Removal struct {
	Removed         []int `json:"removed"`
	Failed          []int `json:"failed,omitempty"`
	RegistryUpdated bool  `json:"registry_updated"`
}

// Executor removes a confirmed tab set and the container's registry entry.
// Callers must have validated the identifier and passed the anomaly check.
type Executor struct {
	host     TabHost
	registry *Registry
}

func NewExecutor(host TabHost, registry *Registry) *Executor {
	return &Executor{host: host, registry: registry}
}

// Execute closes every tab in owned and then drops id from the registry.
// Tabs that were already closed by the user do not fail the deletion; a host
// error that closed nothing does, and leaves the registry untouched.
func (x *Executor) Execute(ctx context.Context, owned TabSet, id ID, name string) (Removal, error) {
	ids := owned.IDs()
	res := Removal{Removed: ids}

	if len(ids) > 0 {
		if err := x.host.RemoveTabs(ctx, ids); err != nil {
			var partial *PartialRemovalError
			if !errors.As(err, &partial) || len(partial.Removed) == 0 {
				return Removal{Failed: ids}, &HostRemovalError{ContainerID: id, Err: err}
			}
			res.Removed = partial.Removed
			res.Failed = partial.FailedIDs()
			log.Printf("[container:%s] partial tab removal for %q: %v (failed: %v)", id, name, err, res.Failed)
		}
	}

	res.RegistryUpdated = x.registry.Remove(id)
	return res, nil
}

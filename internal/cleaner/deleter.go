package cleaner

import (
	"context"
	"fmt"
)

// Registry is the host entity registry as seen by the Deleter.
type Registry interface {
	IsRegistered(ctx context.Context, entityID string) (bool, error)
	Remove(ctx context.Context, entityID string) error
}

// DeletionResult reports the outcome of a batch removal. Every requested id
// appears exactly once, either in Deleted or in one Errors message.
type DeletionResult struct {
	Deleted []string `json:"deleted" yaml:"deleted"`
	Errors  []string `json:"errors" yaml:"errors"`
}

// Deleter removes entities from the registry one at a time.
type Deleter struct {
	registry Registry
}

// NewDeleter creates a deleter over registry.
func NewDeleter(registry Registry) *Deleter {
	return &Deleter{registry: registry}
}

// Delete removes each id, continuing past failures.
func (d *Deleter) Delete(ctx context.Context, entityIDs []string) *DeletionResult {
	result := &DeletionResult{
		Deleted: []string{},
		Errors:  []string{},
	}

	for _, id := range entityIDs {
		if err := d.deleteOne(ctx, id); err != nil {
			logger.Warningf("not removing %s: %v", id, err)
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		logger.Infof("removed %s from entity registry", id)
		result.Deleted = append(result.Deleted, id)
	}

	return result
}

func (d *Deleter) deleteOne(ctx context.Context, id string) error {
	registered, err := d.registry.IsRegistered(ctx, id)
	if err != nil {
		return fmt.Errorf("Error removing %s: %v", id, err)
	}
	if !registered {
		return fmt.Errorf("%s not found in registry", id)
	}
	if err := d.registry.Remove(ctx, id); err != nil {
		return fmt.Errorf("Error removing %s: %v", id, err)
	}
	return nil
}

package statestore

import (
	"context"
	"time"

	"github.com/devc/devc/internal/provider"
)

// ReconcileGrace is how long a state record with no matching live
// container is tolerated before being marked Error instead of left
// alone — it covers the brief window between Create and the provider
// actually reporting the new container in List.
const ReconcileGrace = 5 * time.Second

// Reconcile brings a persisted ContainerState back into agreement with
// what the runtime actually reports. The invariant it restores: a state
// record exists iff the runtime has (or very recently had) a container
// with ProviderContainerID; Running/Stopped status mirrors the
// runtime's own view.
func Reconcile(ctx context.Context, p provider.Provider, st *ContainerState) (*ContainerState, error) {
	if st.ProviderContainerID == "" {
		return st, nil
	}

	info, err := p.Inspect(ctx, st.ProviderContainerID)
	if err != nil {
		if time.Since(st.UpdatedAt) < ReconcileGrace {
			return st, nil
		}
		st.Status = StatusError
		st.ErrorReason = "provider container not found: " + err.Error()
		return st, nil
	}

	if info.Running {
		st.Status = StatusRunning
	} else {
		st.Status = StatusStopped
	}
	st.ErrorReason = ""
	return st, nil
}

// ReconcileAll reconciles every persisted record against the provider's
// live container list, persisting any record whose status changed.
func ReconcileAll(ctx context.Context, p provider.Provider, store *Store) error {
	states, err := store.List()
	if err != nil {
		return err
	}

	for _, st := range states {
		before := st.Status
		reconciled, err := Reconcile(ctx, p, st)
		if err != nil {
			continue
		}
		if reconciled.Status != before {
			_ = store.Save(reconciled)
		}
	}
	return nil
}

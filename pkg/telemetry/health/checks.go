package health

import (
	"context"
	"errors"
	"fmt"

	"ledgerline/policyforge/pkg/policy/manager"
)

// Pinger is implemented by storage.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreCheck pings the policy store.
func StoreCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("store unreachable: %w", err)
		}
		return nil
	}
}

// CatalogStatus is implemented by *manager.Manager.
type CatalogStatus interface {
	Status() manager.LoadStatus
}

// CatalogCheck fails until a catalog with at least one template is active.
// A failed reload while an older catalog is still serving is not a failure.
func CatalogCheck(c CatalogStatus) CheckFunc {
	return func(ctx context.Context) error {
		st := c.Status()
		if st.LastLoad.IsZero() {
			return errors.New("catalog not loaded yet")
		}
		if st.Templates == 0 {
			if st.LastError != "" {
				return fmt.Errorf("catalog empty: %s", st.LastError)
			}
			return errors.New("catalog has no templates")
		}
		return nil
	}
}

// SchedulerStatus is implemented by *scheduler.Scheduler.
type SchedulerStatus interface {
	IsRunning() bool
}

// SchedulerCheck fails when the maintenance scheduler is stopped.
func SchedulerCheck(s SchedulerStatus) CheckFunc {
	return func(ctx context.Context) error {
		if !s.IsRunning() {
			return errors.New("scheduler not running")
		}
		return nil
	}
}

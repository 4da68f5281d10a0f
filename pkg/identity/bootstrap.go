package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/plantwise/plantwise/pkg/storage"
)

// Bootstrap creates the given tenants and roles if they do not already
// exist. Roles get a random id; tenants keep the id they are given. It is
// safe to run repeatedly.
func Bootstrap(ctx context.Context, s Seeder, tenants []Tenant, roles []string) error {
	for _, name := range roles {
		err := s.CreateRole(ctx, &Role{ID: uuid.NewString(), Name: name})
		if err != nil && !errors.Is(err, storage.ErrConflict) {
			return fmt.Errorf("seeding role %q: %w", name, err)
		}
	}
	for _, t := range tenants {
		if t.ID == "" {
			return fmt.Errorf("seeding tenant %q: id is required", t.Name)
		}
		tenant := t
		if tenant.Name == "" {
			tenant.Name = tenant.ID
		}
		if tenant.CreatedAt.IsZero() {
			tenant.CreatedAt = time.Now().UTC()
		}
		err := s.CreateTenant(ctx, &tenant)
		if err != nil && !errors.Is(err, storage.ErrConflict) {
			return fmt.Errorf("seeding tenant %q: %w", t.ID, err)
		}
	}
	return nil
}

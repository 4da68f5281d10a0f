package identity

import (
	"errors"
	"fmt"

	"github.com/plantwise/plantwise/pkg/storage"
)

// Provisioning errors. ErrTenantNotFound and ErrRoleNotFound both match
// storage.ErrNotFound with errors.Is.
var (
	ErrTenantNotFound = fmt.Errorf("tenant %w", storage.ErrNotFound)
	ErrRoleNotFound   = fmt.Errorf("role %w", storage.ErrNotFound)
	ErrInvalidClaims  = errors.New("invalid identity claims")
)

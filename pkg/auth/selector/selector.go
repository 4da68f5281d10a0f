// Package selector binds the authentication strategy for the process.
// Selection happens once, at composition time; the returned strategy is
// never swapped.
package selector

import (
	"log/slog"

	"github.com/plantwise/plantwise/pkg/auth"
	"github.com/plantwise/plantwise/pkg/auth/local"
	"github.com/plantwise/plantwise/pkg/auth/verified"
	"github.com/plantwise/plantwise/pkg/identity"
)

// Development is the only environment that binds the local strategy.
const Development = "development"

// Options carries everything needed to build either strategy.
type Options struct {
	// Environment is the runtime environment discriminator. It is compared
	// exactly: only "development" selects the local strategy.
	Environment string

	Provisioner *identity.Provisioner

	// Local configures the fixture identity used in development.
	Local local.Config

	// Verifier checks bearer tokens outside development. Nil leaves
	// verification unimplemented and every request is denied.
	Verifier verified.TokenVerifier

	Logger *slog.Logger
}

// Select returns the strategy for opts.Environment.
func Select(opts Options) auth.Strategy {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var s auth.Strategy
	if opts.Environment == Development {
		s = local.New(opts.Provisioner, opts.Local, logger)
	} else {
		s = verified.New(opts.Provisioner, opts.Verifier, logger)
		if opts.Verifier == nil {
			logger.Warn("no token verifier configured; all authenticated routes will be denied",
				"environment", opts.Environment,
			)
		}
	}

	logger.Info("authentication strategy bound",
		"strategy", s.Name(),
		"environment", opts.Environment,
		"default_role", opts.Provisioner.DefaultRole(),
	)
	return s
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"mds-backend/internal/config"
	"mds-backend/internal/logger"
	"mds-backend/pkg/jwt"
)

type tokenCmd struct {
	cfg config.JWTConfig
	out io.Writer

	providerID string
	regulator  bool
	expiry     time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "mints a bearer token for a provider or a regulator" }
func (*tokenCmd) Usage() string {
	return `token [-provider <uuid>] [-regulator] [-expiry 24h]
`
}

func (p *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.providerID, "provider", "", "provider_id the token acts for")
	f.BoolVar(&p.regulator, "regulator", false, "grant the regulator scope")
	f.DurationVar(&p.expiry, "expiry", 0, "token lifetime, defaults to JWT_EXPIRY")
}

func (p *tokenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.providerID == "" && !p.regulator {
		logger.Error("token needs -provider, -regulator or both")
		return subcommands.ExitUsageError
	}

	if p.cfg.Secret == "" {
		logger.Error("JWT_SECRET is not set")
		return subcommands.ExitFailure
	}

	expiry := p.cfg.Expiry
	if p.expiry > 0 {
		expiry = p.expiry
	}

	scopes := []string{jwt.ScopeAgency}
	if p.regulator {
		scopes = append(scopes, jwt.ScopeRegulator)
	}

	token, err := jwt.NewJWTUtil(p.cfg.Secret, expiry).GenerateToken(p.providerID, scopes...)
	if err != nil {
		logger.Error("Failed to generate token", zap.Error(err))
		return subcommands.ExitFailure
	}

	fmt.Fprintln(p.out, token)
	return subcommands.ExitSuccess
}

// Package token caches the platform bearer credential used by the image
// generation and speech synthesis backends.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/night-tales/skazka/internal/extproc"
)

// ErrNoToken is returned when no credential is cached and a refresh did not
// produce one.
var ErrNoToken = errors.New("platform credential unavailable")

// Provider caches a bearer credential obtained from an external CLI.
// The cache is last-write-wins; refresh is idempotent, so concurrent
// refreshes are tolerated without locking.
type Provider struct {
	command         string
	commandTimeout  time.Duration
	refreshInterval time.Duration

	current atomic.Value // string
}

// NewProvider creates a Provider that obtains credentials by running command
// (e.g. "yc iam create-token") with the given timeout.
func NewProvider(command string, commandTimeout, refreshInterval time.Duration) *Provider {
	return &Provider{
		command:         command,
		commandTimeout:  commandTimeout,
		refreshInterval: refreshInterval,
	}
}

// Get returns the cached credential without touching the network. The empty
// string means no credential has been obtained yet; the caller should call
// Refresh synchronously before failing the request.
func (p *Provider) Get() string {
	v, _ := p.current.Load().(string)
	return v
}

// Refresh invokes the credential-issuing command and replaces the cached value
// on success. On failure the previous value (possibly absent) stays in place.
func (p *Provider) Refresh(ctx context.Context) (string, error) {
	out, err := extproc.Run(ctx, p.commandTimeout, p.command)
	if err != nil {
		log.Error().Err(err).Msg("Credential refresh failed")
		return "", err
	}

	tok := strings.TrimSpace(string(out))
	if tok == "" {
		log.Error().Msg("Credential command returned empty output")
		return "", ErrNoToken
	}

	p.current.Store(tok)
	log.Info().Msg("Platform credential refreshed")
	return tok, nil
}

// Ensure returns a usable credential: the cached one if present, otherwise the
// result of a synchronous refresh. Returns ErrNoToken when neither yields one.
func (p *Provider) Ensure(ctx context.Context) (string, error) {
	if tok := p.Get(); tok != "" {
		return tok, nil
	}
	tok, err := p.Refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoToken, err)
	}
	return tok, nil
}

// Start refreshes the credential once immediately and then on a fixed
// interval until ctx is cancelled. Runs in its own goroutine.
func (p *Provider) Start(ctx context.Context) {
	if _, err := p.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial credential refresh failed, will retry on schedule")
	}

	go func() {
		ticker := time.NewTicker(p.refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Credential refresher stopped")
				return
			case <-ticker.C:
				if _, err := p.Refresh(ctx); err != nil {
					log.Warn().Err(err).Msg("Scheduled credential refresh failed, keeping previous token")
				}
			}
		}
	}()
}

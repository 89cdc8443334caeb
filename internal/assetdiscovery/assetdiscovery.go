// Package assetdiscovery implements subdomain enumeration by shelling out
// to the subfinder binary.
package assetdiscovery

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/sentinelscan/sentinelscan/internal/logging"
)

const defaultDiscoveryTimeout = 10 * time.Minute

// Subfinder enumerates subdomains of a target's registered domain.
type Subfinder struct {
	binary  string
	timeout time.Duration
	logger  logging.Logger
}

// Option configures a Subfinder.
type Option func(*Subfinder)

// WithBinary overrides the subfinder binary path.
func WithBinary(path string) Option { return func(s *Subfinder) { s.binary = path } }

// WithTimeout bounds a whole enumeration run.
func WithTimeout(d time.Duration) Option { return func(s *Subfinder) { s.timeout = d } }

// New creates an asset discoverer backed by the subfinder CLI.
func New(logger logging.Logger, opts ...Option) *Subfinder {
	s := &Subfinder{
		binary:  "subfinder",
		timeout: defaultDiscoveryTimeout,
		logger:  logger.With(logging.Field{Key: "component", Value: "assetdiscovery"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DiscoverSubdomains enumerates subdomains of host's registered domain. An
// IP literal has no registered domain, so enumeration is skipped.
func (s *Subfinder) DiscoverSubdomains(ctx context.Context, host string) ([]string, error) {
	domain, ok := RegisteredDomain(host)
	if !ok {
		s.logger.Debug("no registered domain, skipping enumeration",
			logging.Field{Key: "host", Value: host})
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.Info("enumerating subdomains", logging.Field{Key: "domain", Value: domain})

	cmd := exec.CommandContext(ctx, s.binary, "-d", domain, "-silent", "-no-color")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start subfinder: %w", err)
	}

	subs, parseErr := parseOutput(stdout)
	waitErr := cmd.Wait()

	if parseErr != nil {
		return subs, parseErr
	}
	if waitErr != nil {
		if ctx.Err() != nil {
			return subs, ctx.Err()
		}
		return nil, fmt.Errorf("subfinder: %w", waitErr)
	}

	s.logger.Info("enumeration finished",
		logging.Field{Key: "domain", Value: domain},
		logging.Field{Key: "subdomains", Value: len(subs)})
	return subs, nil
}

// RegisteredDomain reduces a hostname to its registrable apex, so
// "app.staging.example.co.uk" enumerates "example.co.uk". ok is false for IP
// literals and hosts without a public suffix.
func RegisteredDomain(host string) (string, bool) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if net.ParseIP(host) != nil {
		return "", false
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", false
	}
	return domain, true
}

// parseOutput reads one hostname per line, deduplicating while preserving
// order.
func parseOutput(rd io.Reader) ([]string, error) {
	var subs []string
	seen := map[string]struct{}{}

	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.ContainsAny(line, " \t") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		subs = append(subs, line)
	}
	if err := scanner.Err(); err != nil {
		return subs, fmt.Errorf("read subfinder output: %w", err)
	}
	return subs, nil
}

// Package credentials resolves secrets at the process boundary, before the
// orchestrator runs. The core never reads the environment or prompts itself.
package credentials

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ErrMissingCredential means the named secret is absent from the environment
// and no interactive input is possible
var ErrMissingCredential = errors.New("missing credential")

// Resolver obtains named secrets from the environment with a single masked
// interactive fallback
type Resolver struct {
	// Injectable for tests
	lookupEnv  func(string) (string, bool)
	isTerminal func() bool
	readSecret func() ([]byte, error)

	in  *os.File
	out *os.File
}

// NewResolver creates a Resolver reading from the process environment and,
// when available, the controlling terminal
func NewResolver() *Resolver {
	r := &Resolver{
		lookupEnv: os.LookupEnv,
		in:        os.Stdin,
		out:       os.Stderr,
	}
	r.isTerminal = func() bool {
		return term.IsTerminal(int(r.in.Fd()))
	}
	r.readSecret = func() ([]byte, error) {
		return term.ReadPassword(int(r.in.Fd()))
	}
	return r
}

// Resolve returns the secret stored in the named environment variable or, if
// absent, performs one masked interactive read. No retry, no caching.
func (r *Resolver) Resolve(name string) (string, error) {
	if value, ok := r.lookupEnv(name); ok && value != "" {
		return value, nil
	}

	if !r.isTerminal() {
		return "", fmt.Errorf("%w: %s is not set and no terminal is available for interactive input", ErrMissingCredential, name)
	}

	fmt.Fprintf(r.out, "Enter %s: ", name)
	secret, err := r.readSecret()
	fmt.Fprintln(r.out)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read %s interactively: %v", ErrMissingCredential, name, err)
	}
	if len(secret) == 0 {
		return "", fmt.Errorf("%w: %s was empty", ErrMissingCredential, name)
	}

	return string(secret), nil
}

package control

import (
	"os"
	"time"
)

// Controller defines the interface for driving a remote agent host
type Controller interface {
	// Close closes the connection
	Close() error

	// Run executes a command on the remote host and returns its combined
	// stdout; stderr is captured into the returned error on failure
	Run(command string) (string, error)

	// WriteFile writes content to a file on the remote host
	WriteFile(remotePath string, content []byte, mode os.FileMode) error

	// HostName returns the host this controller is attached to
	HostName() string
}

// Config defines configuration for creating controllers
type Config struct {
	Host       string
	User       string
	PrivateKey string // PEM-encoded private key content
	Timeout    time.Duration
	SSHTimeout time.Duration
}

// NewController creates a new controller for the config. SSH is the only
// transport.
func NewController(config Config) (Controller, error) {
	return NewSSH(config)
}

package control

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"agentforge/internal/logging"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// SSH drives a remote host over an SSH connection with SFTP file transfer
type SSH struct {
	client     *ssh.Client
	sftpClient *sftp.Client
	host       string
	user       string
	timeout    time.Duration
}

// escapeNewlines escapes newline characters for proper log formatting
func escapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}

// safeClose safely closes a resource and logs any errors
func safeClose(name string, closer func() error) {
	if err := closer(); err != nil {
		logging.Logger().Warn("failed to close resource",
			zap.String("resource", name),
			zap.Error(err))
	}
}

// NewSSH creates a new SSH connection, waiting for the host's SSH port first
func NewSSH(config Config) (*SSH, error) {
	if err := waitForSSH(config.Host, config.Timeout); err != nil {
		return nil, fmt.Errorf("SSH not available after timeout: %w", err)
	}

	if config.PrivateKey == "" {
		return nil, fmt.Errorf("private key must be provided")
	}
	signer, err := ssh.ParsePrivateKey([]byte(config.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	clientConfig := &ssh.ClientConfig{
		User: config.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		// Freshly provisioned hosts have unknown host keys
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         config.SSHTimeout,
	}

	client, err := ssh.Dial("tcp", net.JoinHostPort(config.Host, "22"), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to dial SSH: %w", err)
	}

	logging.Logger().Info("SSH connection established",
		zap.String("user", config.User),
		zap.String("host", config.Host))

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}

	return &SSH{
		client:     client,
		sftpClient: sftpClient,
		host:       config.Host,
		user:       config.User,
		timeout:    config.Timeout,
	}, nil
}

// Close closes the SFTP and SSH connections
func (s *SSH) Close() error {
	if s.sftpClient != nil {
		safeClose("SFTP client", s.sftpClient.Close)
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// HostName returns the host this controller is attached to
func (s *SSH) HostName() string {
	return s.host
}

// Run executes a command on the remote host and returns its stdout
func (s *SSH) Run(command string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer safeClose("SSH session", session.Close)

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	logging.Logger().Debug("Executing command",
		zap.String("command", logging.Truncate(command)),
		zap.String("host", s.host))

	err = session.Run(command)

	stdoutStr := stdout.String()
	stderrStr := stderr.String()

	logging.Logger().Info("Command executed",
		zap.String("command", logging.Truncate(command)),
		zap.String("host", s.host),
		zap.String("stdout", escapeNewlines(logging.Truncate(stdoutStr))),
		zap.String("stderr", escapeNewlines(logging.Truncate(stderrStr))),
		zap.Bool("success", err == nil))

	if err != nil {
		return stdoutStr, fmt.Errorf("remote command failed: %w: %s", err, stderrStr)
	}
	return stdoutStr, nil
}

// WriteFile writes content to a file on the remote host via SFTP
func (s *SSH) WriteFile(remotePath string, content []byte, mode os.FileMode) error {
	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := s.sftpClient.MkdirAll(dir); err != nil {
			return fmt.Errorf("failed to create remote directory %s: %w", dir, err)
		}
	}

	file, err := s.sftpClient.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
	}
	defer safeClose("remote file", file.Close)

	if _, err := file.Write(content); err != nil {
		return fmt.Errorf("failed to write remote file %s: %w", remotePath, err)
	}
	if err := s.sftpClient.Chmod(remotePath, mode); err != nil {
		return fmt.Errorf("failed to chmod remote file %s: %w", remotePath, err)
	}

	logging.Logger().Debug("Wrote remote file",
		zap.String("path", remotePath),
		zap.Int("size_bytes", len(content)),
		zap.String("host", s.host))

	return nil
}

// waitForSSH waits for SSH port to become available with timeout
func waitForSSH(host string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, "22"), 5*time.Second)
		if err == nil {
			if closeErr := conn.Close(); closeErr != nil {
				logging.Logger().Debug("failed to close connection test",
					zap.String("host", host),
					zap.Error(closeErr))
			}
			return nil
		}

		// Wait 10 seconds before next attempt
		time.Sleep(10 * time.Second)
	}

	return fmt.Errorf("SSH port not available after %v timeout", timeout)
}

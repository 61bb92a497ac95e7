package sshkeys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// KeyPair represents an SSH key pair held in memory. Linux agent hosts are
// created with the public half; the private half never touches disk.
type KeyPair struct {
	PrivateKey string // PEM-encoded
	PublicKey  string // OpenSSH authorized_keys format
}

// GenerateKeyPair generates a new RSA SSH key pair in memory
func GenerateKeyPair() (*KeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %v", err)
	}

	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	publicKey, err := ssh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to generate public key: %v", err)
	}

	return &KeyPair{
		PrivateKey: string(privatePEM),
		PublicKey:  string(ssh.MarshalAuthorizedKey(publicKey)),
	}, nil
}

// Signer parses the private half into an ssh.Signer for client connections
func (kp *KeyPair) Signer() (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey([]byte(kp.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %v", err)
	}
	return signer, nil
}

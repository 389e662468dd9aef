// Package gpgsig implements an optional tcprest.Signer backed by a local
// gpg binary, for deployments that want to reuse an operator's existing
// GPG keyring instead of configuring a standalone RSA key pair.
package gpgsig

import (
	"bytes"
	"fmt"
	"os/exec"
)

// Config names the gpg binary and the local user/key ID to sign as.
type Config struct {
	GPGPath   string // defaults to "gpg" on PATH if empty
	LocalUser string // passed to gpg as -u; required for Sign
}

// Signer shells out to gpg for detached-signature creation and verification.
// It implements tcprest.Signer structurally (Sign/Verify with the same
// shapes) without importing the root package, so callers register it with
// tcprest.RegisterSigner("GPG", gpgsig.Signer{Config: cfg}).
type Signer struct {
	Config Config
}

func (s Signer) gpgPath() string {
	if s.Config.GPGPath != "" {
		return s.Config.GPGPath
	}
	return "gpg"
}

// Sign produces a detached ASCII-armored signature over data. key is
// ignored; the gpg keyring and Config.LocalUser select the signing key.
func (s Signer) Sign(data []byte, key interface{}) ([]byte, error) {
	if s.Config.LocalUser == "" {
		return nil, fmt.Errorf("gpgsig: LocalUser is required to sign")
	}
	cmd := exec.Command(s.gpgPath(), "--batch", "--yes", "--armor", "--detach-sign",
		"--local-user", s.Config.LocalUser, "--output", "-")
	cmd.Stdin = bytes.NewReader(data)
	var out bytes.Buffer
	cmd.Stdout = &out
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("gpgsig: sign failed: %v: %s", err, stderr.String())
	}
	return out.Bytes(), nil
}

// Verify shells out to `gpg --verify` against a detached signature. key is
// ignored; trust is whatever the invoking user's keyring already grants.
func (s Signer) Verify(data, sig []byte, key interface{}) (bool, error) {
	sigFile, err := writeTempFile(sig)
	if err != nil {
		return false, err
	}
	defer removeTempFile(sigFile)

	cmd := exec.Command(s.gpgPath(), "--batch", "--verify", sigFile, "-")
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err = cmd.Run()
	if err != nil {
		return false, nil
	}
	return true, nil
}

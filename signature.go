package tcprest

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"sync"

	"golang.org/x/crypto/ssh"
)

// Signer implements one pluggable signature scheme. Key arguments are
// scheme-specific: the RSA handler signs with an *rsa.PrivateKey and
// verifies against an *rsa.PublicKey or SSH wire-format key bytes; the
// optional gpgsig handler ignores them and uses its own Config and the local
// gpg keyring.
type Signer interface {
	Sign(payload []byte, privateKey interface{}) ([]byte, error)
	Verify(payload, sig []byte, publicKey interface{}) (bool, error)
}

var (
	signerRegistryMu sync.RWMutex
	signerRegistry   = map[string]Signer{
		"RSA": rsaSigner{},
	}
)

// RegisterSigner installs a signature scheme handler under name, e.g. "GPG"
// (tcprest/gpgsig) or a user-plugged scheme. Registration is expected at
// startup, before any frame is signed or verified.
func RegisterSigner(name string, signer Signer) {
	signerRegistryMu.Lock()
	defer signerRegistryMu.Unlock()
	signerRegistry[name] = signer
}

func lookupSigner(name string) (Signer, error) {
	signerRegistryMu.RLock()
	defer signerRegistryMu.RUnlock()
	s, ok := signerRegistry[name]
	if !ok {
		return nil, fmt.Errorf("no signature handler registered for scheme %q", name)
	}
	return s, nil
}

// rsaSigner signs with RSASSA-PKCS1-v1_5 over SHA-256, the default and
// always-present scheme. Keys that arrive in SSH wire format are converted
// with SSHWireRSAPublicKeyToRSAPublicKey before use.
type rsaSigner struct{}

func (rsaSigner) Sign(payload []byte, privateKey interface{}) ([]byte, error) {
	key, ok := privateKey.(*rsa.PrivateKey)
	if !ok || key == nil {
		return nil, fmt.Errorf("RSA signer requires an *rsa.PrivateKey")
	}
	digest := sha256.Sum256(payload)
	return rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
}

func (rsaSigner) Verify(payload, sig []byte, publicKey interface{}) (bool, error) {
	key, err := rsaVerifyKey(publicKey)
	if err != nil {
		return false, err
	}
	digest := sha256.Sum256(payload)
	if rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], sig) != nil {
		return false, nil
	}
	return true, nil
}

// rsaVerifyKey accepts the verification key either already parsed or as
// SSH wire-format bytes (the form ssh-keygen and ssh.PublicKey.Marshal
// produce), so a SigningConfig can carry key material straight from an
// authorized_keys-style source.
func rsaVerifyKey(publicKey interface{}) (*rsa.PublicKey, error) {
	switch k := publicKey.(type) {
	case *rsa.PublicKey:
		if k == nil {
			return nil, fmt.Errorf("RSA signer requires a non-nil public key")
		}
		return k, nil
	case []byte:
		return SSHWireRSAPublicKeyToRSAPublicKey(k)
	default:
		return nil, fmt.Errorf("RSA signer requires an *rsa.PublicKey or SSH wire-format key bytes")
	}
}

// SSHWireRSAPublicKeyToRSAPublicKey parses an RSA public key that arrived
// in SSH wire format (as produced by ssh-keygen or ssh.PublicKey.Marshal)
// into a stdlib *rsa.PublicKey usable by the RSA Signer.
func SSHWireRSAPublicKeyToRSAPublicKey(wire []byte) (*rsa.PublicKey, error) {
	pk, err := ssh.ParsePublicKey(wire)
	if err != nil {
		return nil, err
	}
	cryptoKey, ok := pk.(ssh.CryptoPublicKey)
	if !ok {
		return nil, fmt.Errorf("public key type %s has no crypto.PublicKey representation", pk.Type())
	}
	rsaKey, ok := cryptoKey.CryptoPublicKey().(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("SSH wire key is not an RSA key")
	}
	return rsaKey, nil
}

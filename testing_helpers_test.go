package tcprest

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
)

func testRSAKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating test RSA key: %v", err)
	}
	return priv, &priv.PublicKey
}

package tcprest

import (
	"testing"

	"golang.org/x/crypto/ssh"
)

func TestRSAVerifyAcceptsSSHWirePublicKey(t *testing.T) {
	priv, pub := testRSAKeyPair(t)
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	cfg := SecurityConfig{Signing: &SigningConfig{
		Scheme:     "RSA",
		PrivateKey: priv,
		PublicKey:  sshPub.Marshal(),
	}}
	content := []byte("V2|0|0|{{SGVsbG8=}}")

	sig, err := signature(content, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := verifySignatureSegment(content, sig, cfg); err != nil {
		t.Fatalf("expected SSH wire-format key to verify, got %v", err)
	}

	tampered := append([]byte(nil), content...)
	tampered[0] = 'X'
	if err := verifySignatureSegment(tampered, sig, cfg); err == nil {
		t.Fatal("expected tampered content to fail verification")
	}
}

func TestSSHWireRSAPublicKeyRoundTrip(t *testing.T) {
	_, pub := testRSAKeyPair(t)
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := SSHWireRSAPublicKeyToRSAPublicKey(sshPub.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if parsed.N.Cmp(pub.N) != 0 || parsed.E != pub.E {
		t.Error("parsed key does not match the original")
	}
}

func TestRSAVerifyRejectsUnsupportedKeyShape(t *testing.T) {
	if _, err := (rsaSigner{}).Verify([]byte("x"), []byte("y"), 42); err == nil {
		t.Fatal("expected an unsupported key type to be rejected")
	}
}

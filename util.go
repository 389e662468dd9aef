package tcprest

import (
	"crypto/rand"

	"github.com/keybase/saltpack/encoding/basex"
)

func randNBytes(n uint) (randBytes []byte, err error) {
	randBytes = make([]byte, n)
	_, err = rand.Read(randBytes)
	return
}

// shortAuditToken returns a short base62 token used purely for correlating
// log lines around a single security failure; it carries no secret material.
func shortAuditToken() (token string, err error) {
	randBuf, err := randNBytes(8)
	if err != nil {
		return
	}
	token = basex.Base62StdEncoding.EncodeToString(randBuf)
	return
}

package domain

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"
)

type Credential struct {
	Name      string
	Key       string
	CreatedAt time.Time
}

func (c Credential) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("credential name is required")
	}
	if strings.TrimSpace(c.Key) == "" {
		return fmt.Errorf("credential key is required")
	}

	return nil
}

// MatchCredential finds the credential whose key equals key. Every candidate
// is compared in constant time, and the scan never stops early, so timing
// does not reveal which key matched or how much of it.
func MatchCredential(creds []Credential, key string) (Credential, bool) {
	var match Credential
	found := 0
	for _, c := range creds {
		eq := subtle.ConstantTimeCompare([]byte(c.Key), []byte(key))
		if eq == 1 && found == 0 {
			match = c
		}
		found |= eq
	}
	if key == "" || found == 0 {
		return Credential{}, false
	}

	return match, true
}

package registry

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Contact represents a peer addressed by public key.
type Contact struct {
	PublicKey      string
	Username       string
	LastClockValue int64
	DisplayName    string
	ProfilePic     string
}

// newContact creates a contact with its username derived from the key.
func newContact(publicKey string, deriveUsername func(string) string) *Contact {
	c := &Contact{
		PublicKey: publicKey,
		Username:  deriveUsername(publicKey),
	}

	logrus.WithFields(logrus.Fields{
		"function":   "newContact",
		"public_key": shortKey(publicKey),
		"username":   c.Username,
	}).Debug("Contact created")

	return c
}

// HasProfile reports whether a chat request has populated the profile.
func (c Contact) HasProfile() bool {
	return c.DisplayName != "" || c.ProfilePic != ""
}

// ContactKey normalizes a public key to the lowercase 0x-prefixed form the
// node reports in message signatures.
func ContactKey(publicKey string) string {
	k := strings.ToLower(strings.TrimSpace(publicKey))
	if !strings.HasPrefix(k, "0x") {
		k = "0x" + k
	}
	return k
}

// shortKey truncates a public key for log output.
func shortKey(publicKey string) string {
	if len(publicKey) <= 12 {
		return publicKey
	}
	return publicKey[:12]
}

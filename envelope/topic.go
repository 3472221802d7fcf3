package envelope

import (
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

// TopicLength is the size of a topic code in bytes.
const TopicLength = 4

// ContactDiscoveryTopic carries direct messages and chat requests.
const ContactDiscoveryTopic = "0xf8946aac"

// TopicFromName derives the topic code of a channel: the first four bytes of
// the Keccak-256 hash of name, 0x-prefixed hex.
func TopicFromName(name string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(name))
	return hexutil.Encode(h.Sum(nil)[:TopicLength])
}

// IsTopic reports whether s is already a topic code rather than a name.
func IsTopic(s string) bool {
	return strings.HasPrefix(s, "0x")
}

// TopicOf returns s unchanged when it is a topic code, or the topic derived
// from it otherwise.
func TopicOf(s string) string {
	if IsTopic(s) {
		return s
	}
	return TopicFromName(s)
}

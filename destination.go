package whisperchat

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/opd-ai/whisperchat/registry"
)

// contactCodeLength is the hex length of an uncompressed secp256k1 public key.
const contactCodeLength = 130

// Destination is where a message is sent: a ChannelDestination or a
// ContactDestination.
type Destination interface {
	fmt.Stringer
	isDestination()
}

// ChannelDestination addresses a joined public channel by name.
type ChannelDestination struct {
	Name string
}

func (ChannelDestination) isDestination() {}

func (d ChannelDestination) String() string {
	return "channel:" + d.Name
}

// ContactDestination addresses a contact by public key.
type ContactDestination struct {
	PublicKey string
}

func (ContactDestination) isDestination() {}

func (d ContactDestination) String() string {
	return "contact:" + registry.ContactKey(d.PublicKey)
}

// ToChannel returns a channel destination.
func ToChannel(name string) Destination {
	return ChannelDestination{Name: name}
}

// ToContact returns a contact destination.
func ToContact(publicKey string) Destination {
	return ContactDestination{PublicKey: publicKey}
}

// ParseDestination classifies s once: contact codes become contacts and
// everything else is a channel name.
func ParseDestination(s string) Destination {
	if IsContactCode(s) {
		return ContactDestination{PublicKey: s}
	}
	return ChannelDestination{Name: s}
}

// IsContactCode reports whether s is an optionally 0x-prefixed, 130 digit hex
// public key. Case is ignored.
func IsContactCode(s string) bool {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s) != contactCodeLength {
		return false
	}
	_, err := hexutil.Decode("0x" + s)
	return err == nil
}

// validatePublicKey checks that publicKey is a contact code on the
// secp256k1 curve.
func validatePublicKey(publicKey string) error {
	if !IsContactCode(publicKey) {
		return fmt.Errorf("%w: %q is not a contact code", ErrUnknownContact, publicKey)
	}
	raw, err := hexutil.Decode(registry.ContactKey(publicKey))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownContact, err)
	}
	if _, err := crypto.UnmarshalPubkey(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownContact, err)
	}
	return nil
}

package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// ErrChannelNotFound indicates an operation on a channel that was never
	// joined or was already left.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrContactNotFound indicates an operation on an unknown contact.
	ErrContactNotFound = errors.New("contact not found")
)

// Registry stores channels by name and contacts by normalized public key.
type Registry struct {
	mu             sync.RWMutex
	channels       map[string]*Channel
	contacts       map[string]*Contact
	deriveUsername func(string) string
}

// New creates an empty registry. deriveUsername maps a public key to its
// display handle.
func New(deriveUsername func(string) string) *Registry {
	if deriveUsername == nil {
		deriveUsername = func(string) string { return "" }
	}
	return &Registry{
		channels:       make(map[string]*Channel),
		contacts:       make(map[string]*Contact),
		deriveUsername: deriveUsername,
	}
}

// JoinChannel stores a channel with a zero clock, replacing any existing
// entry of the same name.
func (r *Registry) JoinChannel(name, symKeyID, topic string) Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, exists := r.channels[name]; exists {
		logrus.WithFields(logrus.Fields{
			"function":         "JoinChannel",
			"channel":          name,
			"last_clock_value": old.LastClockValue,
		}).Warn("Re-joining channel resets its clock value")
	}

	ch := &Channel{
		Name:     name,
		SymKeyID: symKeyID,
		Topic:    topic,
	}
	r.channels[name] = ch

	logrus.WithFields(logrus.Fields{
		"function": "JoinChannel",
		"channel":  name,
		"topic":    topic,
	}).Info("Channel joined")

	return *ch
}

// LeaveChannel deletes a channel.
func (r *Registry) LeaveChannel(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[name]; !exists {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, name)
	}
	delete(r.channels, name)

	logrus.WithFields(logrus.Fields{
		"function": "LeaveChannel",
		"channel":  name,
	}).Info("Channel left")
	return nil
}

// Channel returns a copy of the named channel.
func (r *Registry) Channel(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, exists := r.channels[name]
	if !exists {
		return Channel{}, false
	}
	return *ch, true
}

// HasChannel reports whether the channel is joined.
func (r *Registry) HasChannel(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.channels[name]
	return exists
}

// Channels returns copies of all joined channels sorted by name.
func (r *Registry) Channels() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, *ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NextChannelClock increments the channel clock by one and returns the new
// value.
func (r *Registry) NextChannelClock(name string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, exists := r.channels[name]
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrChannelNotFound, name)
	}
	ch.LastClockValue++
	return ch.LastClockValue, nil
}

// ObserveChannelClock advances the channel clock to max(current, observed)
// and returns the resulting value.
func (r *Registry) ObserveChannelClock(name string, observed int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, exists := r.channels[name]
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrChannelNotFound, name)
	}
	if observed > ch.LastClockValue {
		ch.LastClockValue = observed
	}
	return ch.LastClockValue, nil
}

// AddContact stores a contact with a freshly derived username and a zero
// clock, replacing any existing entry for the key.
func (r *Registry) AddContact(publicKey string) Contact {
	key := ContactKey(publicKey)
	c := newContact(key, r.deriveUsername)

	r.mu.Lock()
	r.contacts[key] = c
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "AddContact",
		"public_key": shortKey(key),
		"username":   c.Username,
	}).Info("Contact added")

	return *c
}

// EnsureContact returns the contact for publicKey, creating it on first
// reference. The boolean reports whether the contact was created.
func (r *Registry) EnsureContact(publicKey string) (Contact, bool) {
	key := ContactKey(publicKey)

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, exists := r.contacts[key]; exists {
		return *c, false
	}
	c := newContact(key, r.deriveUsername)
	r.contacts[key] = c
	return *c, true
}

// RemoveContact deletes a contact.
func (r *Registry) RemoveContact(publicKey string) error {
	key := ContactKey(publicKey)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contacts[key]; !exists {
		return fmt.Errorf("%w: %s", ErrContactNotFound, shortKey(key))
	}
	delete(r.contacts, key)

	logrus.WithFields(logrus.Fields{
		"function":   "RemoveContact",
		"public_key": shortKey(key),
	}).Info("Contact removed")
	return nil
}

// Contact returns a copy of the contact for publicKey.
func (r *Registry) Contact(publicKey string) (Contact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.contacts[ContactKey(publicKey)]
	if !exists {
		return Contact{}, false
	}
	return *c, true
}

// Contacts returns copies of all contacts sorted by public key.
func (r *Registry) Contacts() []Contact {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Contact, 0, len(r.contacts))
	for _, c := range r.contacts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublicKey < out[j].PublicKey })
	return out
}

// NextContactClock increments the contact clock by one and returns the new
// value.
func (r *Registry) NextContactClock(publicKey string) (int64, error) {
	key := ContactKey(publicKey)

	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.contacts[key]
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrContactNotFound, shortKey(key))
	}
	c.LastClockValue++
	return c.LastClockValue, nil
}

// ObserveContactClock advances the contact clock to max(current, observed)
// and returns the resulting value.
func (r *Registry) ObserveContactClock(publicKey string, observed int64) (int64, error) {
	key := ContactKey(publicKey)

	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.contacts[key]
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrContactNotFound, shortKey(key))
	}
	if observed > c.LastClockValue {
		c.LastClockValue = observed
	}
	return c.LastClockValue, nil
}

// SetContactProfile records the display name and profile picture announced
// by a chat request.
func (r *Registry) SetContactProfile(publicKey, displayName, profilePic string) (Contact, error) {
	key := ContactKey(publicKey)

	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.contacts[key]
	if !exists {
		return Contact{}, fmt.Errorf("%w: %s", ErrContactNotFound, shortKey(key))
	}

	logrus.WithFields(logrus.Fields{
		"function":         "SetContactProfile",
		"public_key":       shortKey(key),
		"old_display_name": c.DisplayName,
		"new_display_name": displayName,
	}).Debug("Updating contact profile")

	c.DisplayName = displayName
	c.ProfilePic = profilePic
	return *c, nil
}

// Username derives the username of publicKey without registering a contact.
func (r *Registry) Username(publicKey string) string {
	return r.deriveUsername(ContactKey(publicKey))
}

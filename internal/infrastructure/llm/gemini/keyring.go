package gemini

import (
	"errors"
	"sync"
)

// ErrNoKeys is returned when the keyring is constructed without any API key.
var ErrNoKeys = errors.New("gemini: no api keys configured")

// Keyring rotates through a fixed set of Gemini API keys. Quota errors on
// one key advance to the next so a single exhausted key does not take the
// assistant down.
type Keyring struct {
	mu    sync.Mutex
	keys  []string
	index int
}

func NewKeyring(keys []string) (*Keyring, error) {
	clean := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			clean = append(clean, k)
		}
	}
	if len(clean) == 0 {
		return nil, ErrNoKeys
	}
	return &Keyring{keys: clean}, nil
}

func (k *Keyring) Current() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.keys[k.index]
}

// Advance moves to the next key and returns it. Wraps around after the
// last key.
func (k *Keyring) Advance() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.index = (k.index + 1) % len(k.keys)
	return k.keys[k.index]
}

func (k *Keyring) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.keys)
}

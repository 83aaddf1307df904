package prefer

import (
	"fmt"
	"strings"
	"sync"
)

// KeyCodec converts keys to and from their durable string form
// "<key-type-name>:<key-name>". Decoding only succeeds for key types that
// were registered with the codec.
type KeyCodec struct {
	mu    sync.RWMutex
	types map[string]*KeyType
}

// NewKeyCodec creates an empty codec.
func NewKeyCodec() *KeyCodec {
	return &KeyCodec{
		types: make(map[string]*KeyType),
	}
}

// Register makes kt known to the codec. Registering the same key type again
// is a no-op; registering a different key type with the same name fails with
// ErrDuplicateKeyType.
func (c *KeyCodec) Register(kt *KeyType) error {
	if kt == nil {
		return nilArgument("key type")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.types[kt.name]
	if ok && existing != kt {
		return fmt.Errorf("%w: %s", ErrDuplicateKeyType, kt.name)
	}
	c.types[kt.name] = kt
	return nil
}

// Encode returns the durable string form of k.
func (c *KeyCodec) Encode(k Key) (string, error) {
	if k.IsZero() {
		return "", nilArgument("key")
	}
	return k.String(), nil
}

// Decode parses s back into a Key. Malformed input, unregistered key types
// and unknown key names all fail with ErrUnknownKey.
func (c *KeyCodec) Decode(s string) (Key, error) {
	typeName, name, ok := strings.Cut(s, keySeparator)
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrUnknownKey, s)
	}

	c.mu.RLock()
	kt, found := c.types[typeName]
	c.mu.RUnlock()

	if !found {
		return Key{}, fmt.Errorf("%w: key type %q", ErrUnknownKey, typeName)
	}

	k, found := kt.Key(name)
	if !found {
		return Key{}, fmt.Errorf("%w: %q", ErrUnknownKey, s)
	}
	return k, nil
}

// KeyTypes returns the registered key types.
func (c *KeyCodec) KeyTypes() []*KeyType {
	c.mu.RLock()
	defer c.mu.RUnlock()

	types := make([]*KeyType, 0, len(c.types))
	for _, kt := range c.types {
		types = append(types, kt)
	}
	return types
}

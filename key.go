package prefer

import (
	"fmt"
	"strings"
)

// keySeparator separates the key type name from the key name in the encoded form.
const keySeparator = ":"

// KeyType is a closed, ordered set of key names. It plays the role an enum
// type plays in other languages: every Pref in a PrefGroup is keyed by one
// of the KeyType's keys, and the KeyType's name namespaces the keys in the
// store.
type KeyType struct {
	name  string
	keys  []Key
	index map[string]Key
}

// NewKeyType creates a key type with the given name and key names, in
// declaration order. Names must be non-empty, must not contain ":" and key
// names must be unique.
func NewKeyType(name string, names ...string) (*KeyType, error) {
	if err := validateKeyName(name); err != nil {
		return nil, fmt.Errorf("%w: key type name %q: %v", ErrInvalidKey, name, err)
	}

	kt := &KeyType{
		name:  name,
		keys:  make([]Key, 0, len(names)),
		index: make(map[string]Key, len(names)),
	}

	for i, n := range names {
		if err := validateKeyName(n); err != nil {
			return nil, fmt.Errorf("%w: key name %q in %s: %v", ErrInvalidKey, n, name, err)
		}
		if _, exists := kt.index[n]; exists {
			return nil, fmt.Errorf("%w: key name %q repeated in %s", ErrInvalidKey, n, name)
		}
		k := Key{typ: kt, name: n, ordinal: i}
		kt.keys = append(kt.keys, k)
		kt.index[n] = k
	}

	return kt, nil
}

// MustKeyType is like NewKeyType but panics on error. It is meant for
// package level key type declarations.
func MustKeyType(name string, names ...string) *KeyType {
	kt, err := NewKeyType(name, names...)
	if err != nil {
		panic(err)
	}
	return kt
}

func validateKeyName(name string) error {
	if name == "" {
		return fmt.Errorf("empty")
	}
	if strings.Contains(name, keySeparator) {
		return fmt.Errorf("contains %q", keySeparator)
	}
	return nil
}

// Name returns the key type name.
func (t *KeyType) Name() string {
	return t.name
}

// Key returns the key with the given name.
func (t *KeyType) Key(name string) (Key, bool) {
	k, ok := t.index[name]
	return k, ok
}

// MustKey returns the key with the given name and panics if there is none.
func (t *KeyType) MustKey(name string) Key {
	k, ok := t.index[name]
	if !ok {
		panic(fmt.Sprintf("prefer: key type %s has no key %q", t.name, name))
	}
	return k
}

// Keys returns the keys in declaration order.
func (t *KeyType) Keys() []Key {
	keys := make([]Key, len(t.keys))
	copy(keys, t.keys)
	return keys
}

// Contains reports whether k belongs to this key type.
func (t *KeyType) Contains(k Key) bool {
	return k.typ == t
}

func (t *KeyType) String() string {
	return t.name
}

// Key identifies a single preference. Keys are comparable and can be used as
// map keys; the zero Key is invalid.
type Key struct {
	typ     *KeyType
	name    string
	ordinal int
}

// Type returns the key type this key belongs to, or nil for the zero Key.
func (k Key) Type() *KeyType {
	return k.typ
}

// Name returns the key name without its type.
func (k Key) Name() string {
	return k.name
}

// Ordinal returns the declaration index of the key in its type.
func (k Key) Ordinal() int {
	return k.ordinal
}

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool {
	return k.typ == nil
}

// String returns the encoded form "<type>:<name>".
func (k Key) String() string {
	if k.typ == nil {
		return ""
	}
	return k.typ.name + keySeparator + k.name
}

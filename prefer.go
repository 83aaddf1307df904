// prefer.go
package prefer

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Prefer is the registry of pref groups and listeners. It delegates reads
// and writes to a Store and re-dispatches the store's change events to the
// listeners of the matching Pref and PrefGroup.
//
// Listeners may only be added or removed between Initialize and Dispose.
type Prefer struct {
	mu     sync.RWMutex
	config *Config
	store  Store
	codec  *KeyCodec

	groups         []*PrefGroup
	groupIndex     map[*KeyType]*PrefGroup
	prefListeners  map[Key]*prefListenerSet
	groupListeners map[*KeyType]*groupListenerSet

	initialized bool
}

type valueListenerEntry struct {
	id ListenerID
	fn ValueListener
}

type prefListenerSet struct {
	pref      Preference
	listeners []valueListenerEntry
}

type groupListenerEntry struct {
	id ListenerID
	fn GroupListener
}

type groupListenerSet struct {
	group     *PrefGroup
	listeners []groupListenerEntry
}

// New creates a Prefer on top of store.
func New(store Store, opts ...Option) (*Prefer, error) {
	if store == nil {
		return nil, nilArgument("store")
	}

	cfg := &Config{
		observeBuffer:   defaultObserveBuffer,
		dispatchTimeout: defaultDispatchTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = NewDefaultLogger()
	}

	return &Prefer{
		config:         cfg,
		store:          store,
		codec:          NewKeyCodec(),
		groupIndex:     make(map[*KeyType]*PrefGroup),
		prefListeners:  make(map[Key]*prefListenerSet),
		groupListeners: make(map[*KeyType]*groupListenerSet),
	}, nil
}

// Codec returns the key codec used to encode store keys.
func (p *Prefer) Codec() *KeyCodec {
	return p.codec
}

// Logger returns the configured logger.
func (p *Prefer) Logger() Logger {
	return p.config.logger
}

//------------------------------------------------------------------------------
// Lifecycle
//------------------------------------------------------------------------------

// Initialize installs the store's change hook. Calling it again is a no-op.
func (p *Prefer) Initialize() {
	p.mu.Lock()
	if p.initialized {
		p.mu.Unlock()
		return
	}
	p.initialized = true
	p.mu.Unlock()

	p.store.SetChangeHandler(p.handleChange)
	p.config.logger.Debug("Prefer initialized")
}

// Dispose removes the store's change hook and clears all groups and
// listeners. Calling it on a disposed Prefer is a no-op.
func (p *Prefer) Dispose() {
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return
	}
	p.initialized = false
	p.groups = nil
	p.groupIndex = make(map[*KeyType]*PrefGroup)
	p.prefListeners = make(map[Key]*prefListenerSet)
	p.groupListeners = make(map[*KeyType]*groupListenerSet)
	p.mu.Unlock()

	p.store.SetChangeHandler(nil)
	p.config.logger.Debug("Prefer disposed")
}

// IsInitialized reports whether Initialize was called and Dispose was not.
func (p *Prefer) IsInitialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialized
}

//------------------------------------------------------------------------------
// Groups
//------------------------------------------------------------------------------

// AddGroup registers g. A group for the same key type can only be added
// once; the first registration stays active and a *GroupAlreadyAddedError
// carrying g is returned.
func (p *Prefer) AddGroup(g *PrefGroup) error {
	if g == nil {
		return nilArgument("group")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.groupIndex[g.keyType]; exists {
		return &GroupAlreadyAddedError{Group: g}
	}

	p.groups = append(p.groups, g)
	p.groupIndex[g.keyType] = g
	p.config.logger.Debug("Pref group added", "key_type", g.keyType.Name())
	return nil
}

// NewGroup creates a group for kt without adding it.
func (p *Prefer) NewGroup(kt *KeyType, opts ...GroupOption) (*PrefGroup, error) {
	if kt == nil {
		return nil, nilArgument("key type")
	}
	if err := p.codec.Register(kt); err != nil {
		return nil, err
	}

	g := &PrefGroup{
		prefer:  p,
		keyType: kt,
		index:   make(map[Key]Preference),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// AddNewGroup creates a group for kt and adds it.
func (p *Prefer) AddNewGroup(kt *KeyType, opts ...GroupOption) (*PrefGroup, error) {
	g, err := p.NewGroup(kt, opts...)
	if err != nil {
		return nil, err
	}
	if err := p.AddGroup(g); err != nil {
		return nil, err
	}
	return g, nil
}

// FindGroup returns the group registered for kt.
func (p *Prefer) FindGroup(kt *KeyType) (*PrefGroup, bool) {
	if kt == nil {
		return nil, false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	g, ok := p.groupIndex[kt]
	return g, ok
}

// FindGroupByName returns the group whose key type has the given name.
func (p *Prefer) FindGroupByName(name string) (*PrefGroup, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, g := range p.groups {
		if g.keyType.Name() == name {
			return g, true
		}
	}
	return nil, false
}

// Groups returns a snapshot of the added groups in insertion order.
func (p *Prefer) Groups() []*PrefGroup {
	p.mu.RLock()
	defer p.mu.RUnlock()

	groups := make([]*PrefGroup, len(p.groups))
	copy(groups, p.groups)
	return groups
}

// FindPref looks up a pref by its encoded key across all added groups.
func (p *Prefer) FindPref(encoded string) (Preference, error) {
	key, err := p.codec.Decode(encoded)
	if err != nil {
		return nil, err
	}

	g, ok := p.FindGroup(key.Type())
	if !ok {
		return nil, fmt.Errorf("%w: no group for %s", ErrNotFound, key.Type().Name())
	}
	pref, ok := g.FindPref(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return pref, nil
}

//------------------------------------------------------------------------------
// Listeners
//------------------------------------------------------------------------------

// AddListener registers fn for changes of pref. Listeners are called in
// insertion order. Only one Pref instance per key can hold listeners; a
// different instance with the same key is rejected with ErrDuplicateKey.
func (p *Prefer) AddListener(pref Preference, fn ValueListener) (ListenerID, error) {
	if pref == nil {
		return ListenerID{}, nilArgument("pref")
	}
	if fn == nil {
		return ListenerID{}, nilArgument("listener")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return ListenerID{}, notInitialized("add listener")
	}

	key := pref.Key()
	set, exists := p.prefListeners[key]
	if !exists {
		set = &prefListenerSet{pref: pref}
		p.prefListeners[key] = set
	} else if set.pref != pref {
		return ListenerID{}, fmt.Errorf("%w: %s already has listeners on another pref", ErrDuplicateKey, key)
	}

	id := newListenerID()
	set.listeners = append(set.listeners, valueListenerEntry{id: id, fn: fn})
	return id, nil
}

// RemoveListener unregisters the listener id from pref. Unknown ids are ignored.
func (p *Prefer) RemoveListener(pref Preference, id ListenerID) error {
	if pref == nil {
		return nilArgument("pref")
	}
	if id.IsZero() {
		return nilArgument("listener")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return notInitialized("remove listener")
	}

	key := pref.Key()
	set, exists := p.prefListeners[key]
	if !exists || set.pref != pref {
		return nil
	}

	for i, entry := range set.listeners {
		if entry.id == id {
			set.listeners = append(set.listeners[:i:i], set.listeners[i+1:]...)
			break
		}
	}
	if len(set.listeners) == 0 {
		delete(p.prefListeners, key)
	}
	return nil
}

// AddGroupListener registers fn for changes of any pref in group.
func (p *Prefer) AddGroupListener(group *PrefGroup, fn GroupListener) (ListenerID, error) {
	if group == nil {
		return ListenerID{}, nilArgument("group")
	}
	if fn == nil {
		return ListenerID{}, nilArgument("listener")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return ListenerID{}, notInitialized("add group listener")
	}

	set, exists := p.groupListeners[group.keyType]
	if !exists {
		set = &groupListenerSet{group: group}
		p.groupListeners[group.keyType] = set
	} else if set.group != group {
		return ListenerID{}, &GroupAlreadyAddedError{Group: group}
	}

	id := newListenerID()
	set.listeners = append(set.listeners, groupListenerEntry{id: id, fn: fn})
	return id, nil
}

// RemoveGroupListener unregisters the group listener id. Unknown ids are ignored.
func (p *Prefer) RemoveGroupListener(group *PrefGroup, id ListenerID) error {
	if group == nil {
		return nilArgument("group")
	}
	if id.IsZero() {
		return nilArgument("listener")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return notInitialized("remove group listener")
	}

	set, exists := p.groupListeners[group.keyType]
	if !exists || set.group != group {
		return nil
	}

	for i, entry := range set.listeners {
		if entry.id == id {
			set.listeners = append(set.listeners[:i:i], set.listeners[i+1:]...)
			break
		}
	}
	if len(set.listeners) == 0 {
		delete(p.groupListeners, group.keyType)
	}
	return nil
}

//------------------------------------------------------------------------------
// Pref construction
//------------------------------------------------------------------------------

// NewBool creates a bool pref.
func (p *Prefer) NewBool(key Key, defaultValue bool, opts ...PrefOption) (*Pref[bool], error) {
	return newPref(p, key, defaultValue, boolCodec, opts)
}

// NewInt creates an int pref.
func (p *Prefer) NewInt(key Key, defaultValue int, opts ...PrefOption) (*Pref[int], error) {
	return newPref(p, key, defaultValue, intCodec, opts)
}

// NewInt64 creates an int64 pref.
func (p *Prefer) NewInt64(key Key, defaultValue int64, opts ...PrefOption) (*Pref[int64], error) {
	return newPref(p, key, defaultValue, int64Codec, opts)
}

// NewFloat creates a float32 pref.
func (p *Prefer) NewFloat(key Key, defaultValue float32, opts ...PrefOption) (*Pref[float32], error) {
	return newPref(p, key, defaultValue, floatCodec, opts)
}

// NewString creates a string pref.
func (p *Prefer) NewString(key Key, defaultValue string, opts ...PrefOption) (*Pref[string], error) {
	return newPref(p, key, defaultValue, stringCodec, opts)
}

// NewFromString creates a pref of the given kind, parsing the default value
// from its text form. It is used for prefs declared in configuration.
func (p *Prefer) NewFromString(kind ValueKind, key Key, defaultValue string, opts ...PrefOption) (Preference, error) {
	switch kind {
	case KindBool:
		return newPrefFromString(p, key, defaultValue, boolCodec, opts)
	case KindInt:
		return newPrefFromString(p, key, defaultValue, intCodec, opts)
	case KindInt64:
		return newPrefFromString(p, key, defaultValue, int64Codec, opts)
	case KindFloat:
		return newPrefFromString(p, key, defaultValue, floatCodec, opts)
	case KindString:
		return newPrefFromString(p, key, defaultValue, stringCodec, opts)
	default:
		return nil, fmt.Errorf("%w: unsupported kind %q", ErrInvalidValue, kind)
	}
}

func newPrefFromString[V any](p *Prefer, key Key, defaultValue string, codec valueCodec[V], opts []PrefOption) (Preference, error) {
	v, err := codec.decodeValue(defaultValue)
	if err != nil {
		return nil, fmt.Errorf("default value for %s: %w", key, err)
	}
	pref, err := newPref(p, key, v, codec, opts)
	if err != nil {
		return nil, err
	}
	return pref, nil
}

//------------------------------------------------------------------------------
// Store access
//------------------------------------------------------------------------------

// GetBool returns the stored bool for key or defaultValue.
func (p *Prefer) GetBool(ctx context.Context, key Key, defaultValue bool) (bool, error) {
	return getValue(ctx, p, key, boolCodec, defaultValue)
}

// PutBool stores a bool for key.
func (p *Prefer) PutBool(ctx context.Context, key Key, value bool) error {
	return putValue(ctx, p, key, boolCodec, value)
}

// GetInt returns the stored int for key or defaultValue.
func (p *Prefer) GetInt(ctx context.Context, key Key, defaultValue int) (int, error) {
	return getValue(ctx, p, key, intCodec, defaultValue)
}

// PutInt stores an int for key.
func (p *Prefer) PutInt(ctx context.Context, key Key, value int) error {
	return putValue(ctx, p, key, intCodec, value)
}

// GetInt64 returns the stored int64 for key or defaultValue.
func (p *Prefer) GetInt64(ctx context.Context, key Key, defaultValue int64) (int64, error) {
	return getValue(ctx, p, key, int64Codec, defaultValue)
}

// PutInt64 stores an int64 for key.
func (p *Prefer) PutInt64(ctx context.Context, key Key, value int64) error {
	return putValue(ctx, p, key, int64Codec, value)
}

// GetFloat returns the stored float32 for key or defaultValue.
func (p *Prefer) GetFloat(ctx context.Context, key Key, defaultValue float32) (float32, error) {
	return getValue(ctx, p, key, floatCodec, defaultValue)
}

// PutFloat stores a float32 for key.
func (p *Prefer) PutFloat(ctx context.Context, key Key, value float32) error {
	return putValue(ctx, p, key, floatCodec, value)
}

// GetString returns the stored string for key or defaultValue.
func (p *Prefer) GetString(ctx context.Context, key Key, defaultValue string) (string, error) {
	return getValue(ctx, p, key, stringCodec, defaultValue)
}

// PutString stores a string for key.
func (p *Prefer) PutString(ctx context.Context, key Key, value string) error {
	return putValue(ctx, p, key, stringCodec, value)
}

// GetFromString returns the raw stored text for key or defaultValue.
func (p *Prefer) GetFromString(ctx context.Context, key Key, defaultValue string) (string, error) {
	storeKey, err := p.storeKey(key)
	if err != nil {
		return "", err
	}

	raw, err := p.store.Get(ctx, storeKey)
	if errors.Is(err, ErrNotFound) {
		return defaultValue, nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", storeKey, err)
	}
	return raw, nil
}

// PutFromString stores raw text for key without any kind conversion.
func (p *Prefer) PutFromString(ctx context.Context, key Key, value string) error {
	storeKey, err := p.storeKey(key)
	if err != nil {
		return err
	}
	if err := p.store.Set(ctx, storeKey, value); err != nil {
		return fmt.Errorf("put %s: %w", storeKey, err)
	}
	return nil
}

// Contains reports whether a value is stored for key.
func (p *Prefer) Contains(ctx context.Context, key Key) (bool, error) {
	storeKey, err := p.storeKey(key)
	if err != nil {
		return false, err
	}
	return p.store.Contains(ctx, storeKey)
}

// Remove deletes the stored value for key, so reads fall back to the default.
func (p *Prefer) Remove(ctx context.Context, key Key) error {
	storeKey, err := p.storeKey(key)
	if err != nil {
		return err
	}
	if err := p.store.Delete(ctx, storeKey); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("remove %s: %w", storeKey, err)
	}
	return nil
}

// storeKey encodes key and makes sure its type can be decoded again when
// the store reports a change.
func (p *Prefer) storeKey(key Key) (string, error) {
	encoded, err := p.codec.Encode(key)
	if err != nil {
		return "", err
	}
	if err := p.codec.Register(key.Type()); err != nil {
		return "", err
	}
	return encoded, nil
}

func getValue[V any](ctx context.Context, p *Prefer, key Key, codec valueCodec[V], defaultValue V) (V, error) {
	var zero V

	storeKey, err := p.storeKey(key)
	if err != nil {
		return zero, err
	}

	raw, err := p.store.Get(ctx, storeKey)
	if errors.Is(err, ErrNotFound) {
		return defaultValue, nil
	}
	if err != nil {
		return zero, fmt.Errorf("get %s: %w", storeKey, err)
	}

	return codec.decodeValue(raw)
}

func putValue[V any](ctx context.Context, p *Prefer, key Key, codec valueCodec[V], value V) error {
	if err := codec.validate(value); err != nil {
		return err
	}

	storeKey, err := p.storeKey(key)
	if err != nil {
		return err
	}
	if err := p.store.Set(ctx, storeKey, codec.encode(value)); err != nil {
		return fmt.Errorf("put %s: %w", storeKey, err)
	}
	return nil
}

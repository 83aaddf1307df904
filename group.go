package prefer

import (
	"fmt"
	"sync"
)

// GroupOption configures a PrefGroup at construction.
type GroupOption func(*PrefGroup)

// WithGroupMeta sets the group's title and summary.
func WithGroupMeta(title, summary string) GroupOption {
	return func(g *PrefGroup) {
		g.meta = PrefMeta{Title: title, Summary: summary}
	}
}

// PrefGroup is an ordered collection of prefs sharing one KeyType. It holds
// at most one pref per key.
type PrefGroup struct {
	prefer  *Prefer
	keyType *KeyType
	meta    PrefMeta

	mu    sync.RWMutex
	prefs []Preference
	index map[Key]Preference
}

// KeyType returns the key type of the group.
func (g *PrefGroup) KeyType() *KeyType {
	return g.keyType
}

// Meta returns the group's title and summary.
func (g *PrefGroup) Meta() PrefMeta {
	return g.meta
}

// AddPref adds pref to the group. The pref's key must belong to the group's
// key type and must not be taken yet.
func (g *PrefGroup) AddPref(pref Preference) error {
	if pref == nil {
		return nilArgument("pref")
	}

	key := pref.Key()
	if !g.keyType.Contains(key) {
		return fmt.Errorf("%w: %s does not belong to group %s", ErrInvalidKey, key, g.keyType.Name())
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.index[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}

	g.prefs = append(g.prefs, pref)
	g.index[key] = pref
	return nil
}

// FindPref returns the pref registered under key.
func (g *PrefGroup) FindPref(key Key) (Preference, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	pref, ok := g.index[key]
	return pref, ok
}

// Prefs returns the group's prefs in insertion order.
func (g *PrefGroup) Prefs() []Preference {
	g.mu.RLock()
	defer g.mu.RUnlock()

	prefs := make([]Preference, len(g.prefs))
	copy(prefs, g.prefs)
	return prefs
}

// Len returns the number of prefs in the group.
func (g *PrefGroup) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.prefs)
}

// AddNewBool creates a bool pref and adds it to the group.
func (g *PrefGroup) AddNewBool(key Key, defaultValue bool, opts ...PrefOption) (*Pref[bool], error) {
	pref, err := newPref(g.prefer, key, defaultValue, boolCodec, opts)
	return addNewPref(g, pref, err)
}

// AddNewInt creates an int pref and adds it to the group.
func (g *PrefGroup) AddNewInt(key Key, defaultValue int, opts ...PrefOption) (*Pref[int], error) {
	pref, err := newPref(g.prefer, key, defaultValue, intCodec, opts)
	return addNewPref(g, pref, err)
}

// AddNewInt64 creates an int64 pref and adds it to the group.
func (g *PrefGroup) AddNewInt64(key Key, defaultValue int64, opts ...PrefOption) (*Pref[int64], error) {
	pref, err := newPref(g.prefer, key, defaultValue, int64Codec, opts)
	return addNewPref(g, pref, err)
}

// AddNewFloat creates a float32 pref and adds it to the group.
func (g *PrefGroup) AddNewFloat(key Key, defaultValue float32, opts ...PrefOption) (*Pref[float32], error) {
	pref, err := newPref(g.prefer, key, defaultValue, floatCodec, opts)
	return addNewPref(g, pref, err)
}

// AddNewString creates a string pref and adds it to the group.
func (g *PrefGroup) AddNewString(key Key, defaultValue string, opts ...PrefOption) (*Pref[string], error) {
	pref, err := newPref(g.prefer, key, defaultValue, stringCodec, opts)
	return addNewPref(g, pref, err)
}

// AddNew creates a pref of the given kind from its text default and adds it.
func (g *PrefGroup) AddNew(kind ValueKind, key Key, defaultValue string, opts ...PrefOption) (Preference, error) {
	pref, err := g.prefer.NewFromString(kind, key, defaultValue, opts...)
	if err != nil {
		return nil, err
	}
	if err := g.AddPref(pref); err != nil {
		return nil, err
	}
	return pref, nil
}

func addNewPref[V any](g *PrefGroup, pref *Pref[V], err error) (*Pref[V], error) {
	if err != nil {
		return nil, err
	}
	if err := g.AddPref(pref); err != nil {
		return nil, err
	}
	return pref, nil
}

// AddListener registers fn for changes of any pref in the group.
func (g *PrefGroup) AddListener(fn GroupListener) (ListenerID, error) {
	return g.prefer.AddGroupListener(g, fn)
}

// RemoveListener unregisters a listener added with AddListener.
func (g *PrefGroup) RemoveListener(id ListenerID) error {
	return g.prefer.RemoveGroupListener(g, id)
}

func (g *PrefGroup) String() string {
	return fmt.Sprintf("PrefGroup{%s}", g.keyType.Name())
}

package prefer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// PrefMeta holds the human readable description of a pref or group.
type PrefMeta struct {
	Title   string `json:"title,omitempty" yaml:"title"`
	Summary string `json:"summary,omitempty" yaml:"summary"`
}

// ListenerID identifies a registered listener so it can be removed again.
// The zero ListenerID is never issued.
type ListenerID uuid.UUID

func newListenerID() ListenerID {
	return ListenerID(uuid.New())
}

// IsZero reports whether id is the zero ListenerID.
func (id ListenerID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id ListenerID) String() string {
	return uuid.UUID(id).String()
}

// ValueListener is called with the new value of a pref after it changed in the store.
type ValueListener func(value any)

// GroupListener is called with the changed pref of a group.
type GroupListener func(pref Preference)

// Preference is the type-erased view of a Pref, shared by groups, group
// listeners and the HTTP API.
type Preference interface {
	Key() Key
	Kind() ValueKind
	Meta() PrefMeta
	AnyValue(ctx context.Context) (any, error)
	AnyDefault() any
	ValueString(ctx context.Context) (string, error)
	SetString(ctx context.Context, s string) error
}

// PrefOption configures a pref at construction.
type PrefOption func(*prefConfig)

type prefConfig struct {
	meta       PrefMeta
	validators []func(any) error
}

// WithTitle sets the pref's title.
func WithTitle(title string) PrefOption {
	return func(c *prefConfig) {
		c.meta.Title = title
	}
}

// WithSummary sets the pref's summary.
func WithSummary(summary string) PrefOption {
	return func(c *prefConfig) {
		c.meta.Summary = summary
	}
}

// WithValidator adds a validation rule that runs after the kind's own rule,
// for the default value and for every SetValue. A validator whose value type
// does not match the pref's type rejects every value.
func WithValidator[V any](fn func(V) error) PrefOption {
	return func(c *prefConfig) {
		if fn == nil {
			return
		}
		c.validators = append(c.validators, func(x any) error {
			v, ok := x.(V)
			if !ok {
				return fmt.Errorf("%w: validator expects %T, got %T", ErrInvalidValue, v, x)
			}
			return fn(v)
		})
	}
}

// Pref is a single typed preference with a default value. Its current value
// lives in the Prefer's store under the key's encoded form.
type Pref[V any] struct {
	prefer       *Prefer
	key          Key
	defaultValue V
	codec        valueCodec[V]
	meta         PrefMeta
	validators   []func(any) error
}

func newPref[V any](p *Prefer, key Key, defaultValue V, codec valueCodec[V], opts []PrefOption) (*Pref[V], error) {
	if p == nil {
		return nil, nilArgument("prefer")
	}
	if key.IsZero() {
		return nil, nilArgument("key")
	}

	cfg := &prefConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	pref := &Pref[V]{
		prefer:       p,
		key:          key,
		defaultValue: defaultValue,
		codec:        codec,
		meta:         cfg.meta,
		validators:   cfg.validators,
	}

	if err := pref.Validate(defaultValue); err != nil {
		return nil, fmt.Errorf("default value for %s: %w", key, err)
	}

	if err := p.codec.Register(key.Type()); err != nil {
		return nil, err
	}

	return pref, nil
}

// Key returns the pref's key.
func (p *Pref[V]) Key() Key {
	return p.key
}

// Kind returns the pref's value kind.
func (p *Pref[V]) Kind() ValueKind {
	return p.codec.kind
}

// Meta returns the pref's title and summary.
func (p *Pref[V]) Meta() PrefMeta {
	return p.meta
}

// DefaultValue returns the value used when nothing is stored.
func (p *Pref[V]) DefaultValue() V {
	return p.defaultValue
}

// Validate checks v against the kind rule and the custom validators.
func (p *Pref[V]) Validate(v V) error {
	if err := p.codec.validate(v); err != nil {
		return err
	}
	for _, validate := range p.validators {
		if err := validate(v); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
	}
	return nil
}

// Value returns the stored value, or the default when nothing is stored.
func (p *Pref[V]) Value(ctx context.Context) (V, error) {
	return getValue(ctx, p.prefer, p.key, p.codec, p.defaultValue)
}

// SetValue validates v and writes it to the store.
func (p *Pref[V]) SetValue(ctx context.Context, v V) error {
	if err := p.Validate(v); err != nil {
		return err
	}
	return putValue(ctx, p.prefer, p.key, p.codec, v)
}

// AddListener registers fn to be called with the new value whenever this
// pref changes in the store.
func (p *Pref[V]) AddListener(fn func(V)) (ListenerID, error) {
	if fn == nil {
		return ListenerID{}, nilArgument("listener")
	}
	return p.prefer.AddListener(p, func(value any) {
		if v, ok := value.(V); ok {
			fn(v)
		}
	})
}

// RemoveListener unregisters a listener added with AddListener.
func (p *Pref[V]) RemoveListener(id ListenerID) error {
	return p.prefer.RemoveListener(p, id)
}

// AnyValue implements Preference.
func (p *Pref[V]) AnyValue(ctx context.Context) (any, error) {
	return p.Value(ctx)
}

// AnyDefault implements Preference.
func (p *Pref[V]) AnyDefault() any {
	return p.defaultValue
}

// ValueString returns the current value in its stored text form.
func (p *Pref[V]) ValueString(ctx context.Context) (string, error) {
	v, err := p.Value(ctx)
	if err != nil {
		return "", err
	}
	return p.codec.encode(v), nil
}

// SetString parses s according to the pref's kind and stores it.
func (p *Pref[V]) SetString(ctx context.Context, s string) error {
	v, err := p.codec.decodeValue(s)
	if err != nil {
		return err
	}
	return p.SetValue(ctx, v)
}

func (p *Pref[V]) String() string {
	return fmt.Sprintf("Pref{%s %s}", p.key, p.codec.kind)
}

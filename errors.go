// errors.go
package prefer

import (
	"errors"
	"fmt"
)

var (
	ErrNilArgument        = errors.New("nil argument")
	ErrNotInitialized     = errors.New("prefer not initialized")
	ErrGroupAlreadyAdded  = errors.New("pref group already added")
	ErrInvalidValue       = errors.New("invalid pref value")
	ErrInvalidKey         = errors.New("invalid pref key")
	ErrDuplicateKey       = errors.New("duplicate pref key")
	ErrDuplicateKeyType   = errors.New("duplicate key type")
	ErrUnknownKey         = errors.New("unknown pref key")
	ErrNotFound           = errors.New("pref not found")
	ErrStorageUnavailable = errors.New("storage backend unavailable")
	ErrCacheUnavailable   = errors.New("cache backend unavailable")
)

// GroupAlreadyAddedError is returned by Prefer.AddGroup when a group for the
// same key type is already registered. Group is the rejected group.
type GroupAlreadyAddedError struct {
	Group *PrefGroup
}

func (e *GroupAlreadyAddedError) Error() string {
	if e.Group == nil {
		return ErrGroupAlreadyAdded.Error()
	}
	return fmt.Sprintf("%s: %s", ErrGroupAlreadyAdded, e.Group.KeyType().Name())
}

// Unwrap lets errors.Is match ErrGroupAlreadyAdded.
func (e *GroupAlreadyAddedError) Unwrap() error {
	return ErrGroupAlreadyAdded
}

func nilArgument(name string) error {
	return fmt.Errorf("%w: %s can not be nil", ErrNilArgument, name)
}

func notInitialized(action string) error {
	return fmt.Errorf("%w: can not %s", ErrNotInitialized, action)
}

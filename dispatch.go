package prefer

import (
	"context"
)

// handleChange is installed as the store's change hook. It decodes the key
// and notifies the listeners of the matching pref and of the group of the
// key's type. Keys that can not be decoded belong to somebody else and are
// ignored.
func (p *Prefer) handleChange(encoded string) {
	key, err := p.codec.Decode(encoded)
	if err != nil {
		p.config.logger.Debug("Ignoring change of unknown key", "key", encoded)
		return
	}

	p.mu.RLock()
	if !p.initialized {
		p.mu.RUnlock()
		return
	}

	var (
		pref           Preference
		valueListeners []ValueListener
		group          *PrefGroup
		groupListeners []GroupListener
	)

	if set, ok := p.prefListeners[key]; ok {
		pref = set.pref
		valueListeners = make([]ValueListener, len(set.listeners))
		for i, entry := range set.listeners {
			valueListeners[i] = entry.fn
		}
	}
	if set, ok := p.groupListeners[key.Type()]; ok {
		group = set.group
		groupListeners = make([]GroupListener, len(set.listeners))
		for i, entry := range set.listeners {
			groupListeners[i] = entry.fn
		}
	}
	p.mu.RUnlock()

	if len(valueListeners) > 0 {
		p.notifyValueListeners(pref, valueListeners)
	}
	if len(groupListeners) > 0 {
		p.notifyGroupListeners(group, key, groupListeners)
	}
}

func (p *Prefer) notifyValueListeners(pref Preference, listeners []ValueListener) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.dispatchTimeout)
	defer cancel()

	value, err := pref.AnyValue(ctx)
	if err != nil {
		p.config.logger.Error("Failed to read changed pref", "key", pref.Key().String(), "error", err)
		return
	}

	for _, listener := range listeners {
		listener(value)
	}
}

func (p *Prefer) notifyGroupListeners(group *PrefGroup, key Key, listeners []GroupListener) {
	pref, ok := group.FindPref(key)
	if !ok {
		p.config.logger.Debug("Changed key has no pref in its group", "key", key.String())
		return
	}

	for _, listener := range listeners {
		listener(pref)
	}
}

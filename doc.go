// Package prefer provides typed preferences on top of a pluggable key-value store.
//
// A Prefer owns the store's single change hook and fans raw "key changed" events out to
// per-pref and per-group listeners. Prefs are strongly typed (bool, int, int64, float32,
// string), keyed by a KeyType (a closed set of names) and optionally collected into a
// PrefGroup. Storage backends (memory, SQLite, PostgreSQL, Redis) live in the storage
// package; the api package exposes groups over HTTP.
package prefer

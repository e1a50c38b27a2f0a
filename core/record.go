package core

import (
	"reflect"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Record tracks the changes made to a document. Values are changed only
// through Set, Dirty reports what differs from the stored original.
type Record struct {
	original bson.M
	changed  bson.M
}

// NewRecord wraps a stored document, or a new one when doc has no _id.
func NewRecord(doc bson.M) *Record {
	return &Record{original: cloneDoc(doc), changed: bson.M{}}
}

// ID returns the _id of the stored document, nil for a new record.
func (r *Record) ID() any {
	return r.original["_id"]
}

func (r *Record) IsNew() bool {
	_, ok := r.original["_id"]
	return !ok
}

// Get returns the current value of key.
func (r *Record) Get(key string) any {
	if v, ok := r.changed[key]; ok {
		return v
	}
	return r.original[key]
}

// Original returns the value of key as it was loaded or last saved.
func (r *Record) Original(key string) any {
	return r.original[key]
}

// Set changes key. Setting a key back to its original value clears the
// change.
func (r *Record) Set(key string, val any) *Record {
	if orig, ok := r.original[key]; ok && reflect.DeepEqual(orig, val) {
		delete(r.changed, key)
		return r
	}
	r.changed[key] = val
	return r
}

// IsDirty reports whether any of keys changed, or any key at all when
// none are given.
func (r *Record) IsDirty(keys ...string) bool {
	if len(keys) == 0 {
		return len(r.changed) != 0
	}
	for _, k := range keys {
		if _, ok := r.changed[k]; ok {
			return true
		}
	}
	return false
}

// DirtyKeys returns the changed keys in sorted order.
func (r *Record) DirtyKeys() []string {
	keys := make([]string, 0, len(r.changed))
	for k := range r.changed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dirty returns a copy of the changed values.
func (r *Record) Dirty() bson.M {
	return cloneDoc(r.changed)
}

// Doc returns the current document.
func (r *Record) Doc() bson.M {
	out := cloneDoc(r.original)
	for k, v := range r.changed {
		out[k] = v
	}
	return out
}

// sync commits doc as the new original and clears the changes.
func (r *Record) sync(doc bson.M) {
	r.original = cloneDoc(doc)
	r.changed = bson.M{}
}

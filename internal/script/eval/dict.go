package eval

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// hashKey returns a string that is equal for two values exactly when the
// values compare equal, so 1, 1.0 and True share a key. Mutable
// containers are unhashable.
func hashKey(v Value) (string, error) {
	switch v := v.(type) {
	case nil:
		return "n", nil
	case bool:
		if v {
			return "i:1", nil
		}
		return "i:0", nil
	case int64:
		return "i:" + strconv.FormatInt(v, 10), nil
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<63 {
			return "i:" + strconv.FormatInt(int64(v), 10), nil
		}
		return "f:" + strconv.FormatFloat(v, 'g', -1, 64), nil
	case string:
		return "s:" + v, nil
	case Tuple:
		var b strings.Builder
		b.WriteString("t(")
		for i, e := range v {
			k, err := hashKey(e)
			if err != nil {
				return "", err
			}
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(len(k)))
			b.WriteByte(':')
			b.WriteString(k)
		}
		b.WriteByte(')')
		return b.String(), nil
	case DateTime:
		return "d:" + strconv.FormatInt(v.T.UnixNano(), 10), nil
	case TimeDelta:
		return "td:" + strconv.FormatInt(int64(v.D), 10), nil
	case *Range:
		return fmt.Sprintf("r:%d:%d:%d", v.Start, v.Stop, v.Step), nil
	case *Function, *Builtin, *Object:
		return fmt.Sprintf("p:%p", v), nil
	}
	return "", errorf(TypeError, "unhashable type: '%s'", TypeName(v))
}

type dictEntry struct {
	key Value
	val Value
}

// Dict is an insertion-ordered mapping. Reads on a nil *Dict behave as an
// empty dict.
type Dict struct {
	entries []dictEntry
	index   map[string]int
}

// NewDict returns an empty dict.
func NewDict() *Dict {
	return &Dict{index: make(map[string]int)}
}

// DictFromMap builds a dict with string keys. Keys are inserted in the
// order given by keys, or map order when keys is nil.
func DictFromMap(m map[string]Value, keys []string) *Dict {
	d := NewDict()
	if keys == nil {
		for k := range m {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		d.SetStr(k, m[k])
	}
	return d
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Get returns the value stored under key.
func (d *Dict) Get(key Value) (Value, bool, error) {
	k, err := hashKey(key)
	if err != nil {
		return nil, false, err
	}
	if d == nil {
		return nil, false, nil
	}
	i, ok := d.index[k]
	if !ok {
		return nil, false, nil
	}
	return d.entries[i].val, true, nil
}

// GetStr is Get for a string key.
func (d *Dict) GetStr(key string) (Value, bool) {
	if d == nil {
		return nil, false
	}
	i, ok := d.index["s:"+key]
	if !ok {
		return nil, false
	}
	return d.entries[i].val, true
}

// Set stores val under key, keeping the original position of an existing key.
func (d *Dict) Set(key, val Value) error {
	k, err := hashKey(key)
	if err != nil {
		return err
	}
	if i, ok := d.index[k]; ok {
		d.entries[i].val = val
		return nil
	}
	d.index[k] = len(d.entries)
	d.entries = append(d.entries, dictEntry{key: key, val: val})
	return nil
}

// SetStr is Set for a string key.
func (d *Dict) SetStr(key string, val Value) {
	_ = d.Set(key, val) //nolint:errcheck // strings are always hashable
}

// Delete removes key, reporting whether it was present.
func (d *Dict) Delete(key Value) (bool, error) {
	k, err := hashKey(key)
	if err != nil {
		return false, err
	}
	if d == nil {
		return false, nil
	}
	i, ok := d.index[k]
	if !ok {
		return false, nil
	}
	d.entries = append(d.entries[:i], d.entries[i+1:]...)
	delete(d.index, k)
	for j := i; j < len(d.entries); j++ {
		kk, _ := hashKey(d.entries[j].key) //nolint:errcheck // stored keys are hashable
		d.index[kk] = j
	}
	return true, nil
}

// Keys returns a snapshot of the keys in insertion order.
func (d *Dict) Keys() []Value {
	if d == nil {
		return nil
	}
	out := make([]Value, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.key
	}
	return out
}

// Values returns a snapshot of the values in insertion order.
func (d *Dict) Values() []Value {
	if d == nil {
		return nil
	}
	out := make([]Value, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.val
	}
	return out
}

// Items calls fn for each entry in insertion order over a snapshot.
func (d *Dict) Items(fn func(k, v Value) bool) {
	if d == nil {
		return
	}
	for _, e := range append([]dictEntry(nil), d.entries...) {
		if !fn(e.key, e.val) {
			return
		}
	}
}

// Copy returns a shallow copy. Copying a nil dict yields an empty dict.
func (d *Dict) Copy() *Dict {
	out := NewDict()
	if d == nil {
		return out
	}
	out.entries = append(out.entries, d.entries...)
	for k, i := range d.index {
		out.index[k] = i
	}
	return out
}

// Clear removes every entry.
func (d *Dict) Clear() {
	d.entries = nil
	d.index = make(map[string]int)
}

// StringMap returns the entries whose keys are strings.
func (d *Dict) StringMap() map[string]Value {
	out := make(map[string]Value, d.Len())
	d.Items(func(k, v Value) bool {
		if s, ok := k.(string); ok {
			out[s] = v
		}
		return true
	})
	return out
}

// Set is an insertion-ordered set of hashable values.
type Set struct {
	d *Dict
}

// NewSet returns a set holding items.
func NewSet(items ...Value) (*Set, error) {
	s := &Set{d: NewDict()}
	for _, it := range items {
		if err := s.Add(it); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Len returns the number of members.
func (s *Set) Len() int { return s.d.Len() }

// Add inserts v.
func (s *Set) Add(v Value) error { return s.d.Set(v, nil) }

// Has reports whether v is a member.
func (s *Set) Has(v Value) (bool, error) {
	_, ok, err := s.d.Get(v)
	return ok, err
}

// Remove deletes v, reporting whether it was present.
func (s *Set) Remove(v Value) (bool, error) { return s.d.Delete(v) }

// Items returns a snapshot of the members in insertion order.
func (s *Set) Items() []Value { return s.d.Keys() }

// Copy returns a shallow copy.
func (s *Set) Copy() *Set { return &Set{d: s.d.Copy()} }

// Clear removes every member.
func (s *Set) Clear() { s.d.Clear() }

// Package intern provides a small string interning table used to shrink
// the Universal CHA: TypeURI strings are looked up once and replaced
// everywhere else by a uint32 id, so transitive closures can be stored
// as sorted []uint32 slices instead of sets of strings. The type
// dictionary does not use it and stays keyed by strings.
package intern

import "sort"

// TypeId is an interned TypeURI identifier.
type TypeId uint32

// Table interns strings to TypeId values and back.
type Table struct {
	toID  map[string]TypeId
	toStr []string
}

// New returns an empty interning table.
func New() *Table {
	return &Table{toID: make(map[string]TypeId)}
}

// Intern returns the id for s, assigning a new one if s hasn't been seen.
func (t *Table) Intern(s string) TypeId {
	if id, ok := t.toID[s]; ok {
		return id
	}
	id := TypeId(len(t.toStr))
	t.toStr = append(t.toStr, s)
	t.toID[s] = id
	return id
}

// Lookup returns the id for s without interning it, reporting whether s
// has been seen before.
func (t *Table) Lookup(s string) (TypeId, bool) {
	id, ok := t.toID[s]
	return id, ok
}

// String materializes the string for id. Panics if id was never interned
// by this table.
func (t *Table) String(id TypeId) string {
	return t.toStr[id]
}

// Len returns the number of distinct strings interned so far.
func (t *Table) Len() int {
	return len(t.toStr)
}

// SortIds sorts a slice of TypeId in place and returns it, the
// representation the universal CHA uses for transitive closures.
func SortIds(ids []TypeId) []TypeId {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

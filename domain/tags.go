package domain

import (
	"sort"
	"strings"
)

// RelSource is the relationship key holding source tags.
const RelSource = "_src"

// NormalizeTag trims a tag and collapses inner whitespace. Case is preserved; tag
// matching is exact.
func NormalizeTag(tag string) string {
	return strings.Join(strings.Fields(tag), " ")
}

// ParseTag splits an annotated "name:value" tag. Plain tags report ok=false.
func ParseTag(tag string) (name, value string, ok bool) {
	i := strings.IndexByte(tag, ':')
	if i <= 0 {
		return tag, "", false
	}
	return tag[:i], tag[i+1:], true
}

// Tags returns the plain tags.
func (e *Entity) Tags() []string { return e.GetStrings(FieldTags) }

func (e *Entity) CountTags() int { return len(e.Tags()) }

// HasTag reports whether the normalized tag is present.
func (e *Entity) HasTag(tag string) bool {
	return indexOf(e.Tags(), NormalizeTag(tag)) >= 0
}

// AddTag inserts tag unless it is already present.
func (e *Entity) AddTag(tag string) bool {
	return e.AddTags(tag) == 1
}

// AddTags inserts each tag not already present and returns how many were added.
func (e *Entity) AddTags(tags ...string) int {
	cur := e.Tags()
	next, added := appendUnique(cur, tags)
	if added > 0 {
		e.Set(FieldTags, next)
	}
	return added
}

// RemoveTag deletes tag, reporting whether it was present.
func (e *Entity) RemoveTag(tag string) bool {
	cur := e.Tags()
	i := indexOf(cur, NormalizeTag(tag))
	if i < 0 {
		return false
	}
	e.Set(FieldTags, removeAt(cur, i))
	return true
}

// ClearTags removes every plain tag.
func (e *Entity) ClearTags() bool { return e.Unset(FieldTags) }

// TagProperty returns the value of the first "name:value" tag with the given name.
func (e *Entity) TagProperty(name string) (string, bool) {
	for _, t := range e.Tags() {
		if n, v, ok := ParseTag(t); ok && n == name {
			return v, true
		}
	}
	return "", false
}

// RelTags returns a copy of the relationship-grouped tags.
func (e *Entity) RelTags() map[string][]string {
	out := make(map[string][]string)
	for rel, v := range e.GetMap(FieldRelTags) {
		if tags := toStrings(v); len(tags) > 0 {
			out[rel] = append([]string(nil), tags...)
		}
	}
	return out
}

// Rels lists the relationships that carry tags, sorted.
func (e *Entity) Rels() []string {
	m := e.RelTags()
	rels := make([]string, 0, len(m))
	for rel := range m {
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	return rels
}

// RelTagsByRel returns the tags grouped under rel.
func (e *Entity) RelTagsByRel(rel string) []string {
	return toStrings(e.GetMap(FieldRelTags)[rel])
}

func (e *Entity) CountRelTags(rel string) int { return len(e.RelTagsByRel(rel)) }

func (e *Entity) HasRelTag(rel, tag string) bool {
	return indexOf(e.RelTagsByRel(rel), NormalizeTag(tag)) >= 0
}

func (e *Entity) AddRelTag(rel, tag string) bool {
	return e.AddRelTags(rel, tag) == 1
}

// AddRelTags inserts tags under rel, skipping duplicates, and returns how many were added.
func (e *Entity) AddRelTags(rel string, tags ...string) int {
	if !e.asserter().Check(rel != "", "add rel tags: empty relationship") {
		return 0
	}
	m := e.RelTags()
	next, added := appendUnique(m[rel], tags)
	if added > 0 {
		m[rel] = next
		e.setRelTags(m)
	}
	return added
}

func (e *Entity) RemoveRelTag(rel, tag string) bool {
	m := e.RelTags()
	i := indexOf(m[rel], NormalizeTag(tag))
	if i < 0 {
		return false
	}
	m[rel] = removeAt(m[rel], i)
	if len(m[rel]) == 0 {
		delete(m, rel)
	}
	e.setRelTags(m)
	return true
}

// RemoveRel drops every tag under rel.
func (e *Entity) RemoveRel(rel string) bool {
	m := e.RelTags()
	if _, ok := m[rel]; !ok {
		return false
	}
	delete(m, rel)
	e.setRelTags(m)
	return true
}

func (e *Entity) AddSourceTag(tag string) bool    { return e.AddRelTag(RelSource, tag) }
func (e *Entity) HasSourceTag(tag string) bool    { return e.HasRelTag(RelSource, tag) }
func (e *Entity) RemoveSourceTag(tag string) bool { return e.RemoveRelTag(RelSource, tag) }
func (e *Entity) SourceTags() []string            { return e.RelTagsByRel(RelSource) }

func (e *Entity) setRelTags(m map[string][]string) {
	if len(m) == 0 {
		e.Unset(FieldRelTags)
		return
	}
	out := make(map[string]any, len(m))
	for rel, tags := range m {
		out[rel] = tags
	}
	e.Set(FieldRelTags, out)
}

// Vars returns the free-form variable expressions.
func (e *Entity) Vars() []string { return e.GetStrings(FieldVars) }

func (e *Entity) HasVar(expr string) bool {
	return indexOf(e.Vars(), strings.TrimSpace(expr)) >= 0
}

// AddVar appends expr unless it is already present.
func (e *Entity) AddVar(expr string) bool {
	expr = strings.TrimSpace(expr)
	cur := e.Vars()
	if expr == "" || indexOf(cur, expr) >= 0 {
		return false
	}
	e.Set(FieldVars, append(append([]string(nil), cur...), expr))
	return true
}

func (e *Entity) RemoveVar(expr string) bool {
	cur := e.Vars()
	i := indexOf(cur, strings.TrimSpace(expr))
	if i < 0 {
		return false
	}
	e.Set(FieldVars, removeAt(cur, i))
	return true
}

func appendUnique(cur, tags []string) ([]string, int) {
	next := append([]string(nil), cur...)
	added := 0
	for _, t := range tags {
		t = NormalizeTag(t)
		if t == "" || indexOf(next, t) >= 0 {
			continue
		}
		next = append(next, t)
		added++
	}
	return next, added
}

func removeAt(list []string, i int) []string {
	out := make([]string, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

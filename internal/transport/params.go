package transport

import (
	"net/url"
	"sort"
	"strings"
)

// Param is a single request parameter.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered list of request parameters. Encoding keeps insertion
// order so the wire format is stable and matches the order callers built it in.
type Params []Param

// P builds Params from alternating key/value strings. A trailing key without
// a value is ignored.
func P(kv ...string) Params {
	p := make(Params, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		p.Set(kv[i], kv[i+1])
	}
	return p
}

// FromValues converts url.Values to Params, sorted by key. Only the first
// value of every key is kept.
func FromValues(v url.Values) Params {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := make(Params, 0, len(keys))
	for _, k := range keys {
		p = append(p, Param{Key: k, Value: v.Get(k)})
	}
	return p
}

// Get returns the value stored under key.
func (p Params) Get(key string) (string, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Set replaces the value of key in place or appends it.
func (p *Params) Set(key, value string) {
	for i := range *p {
		if (*p)[i].Key == key {
			(*p)[i].Value = value
			return
		}
	}
	*p = append(*p, Param{Key: key, Value: value})
}

// Merge returns a new list holding p followed by the entries of other whose
// keys are not already present. Existing keys win.
func (p Params) Merge(other Params) Params {
	merged := p.Clone()
	for _, param := range other {
		if !merged.Has(param.Key) {
			merged = append(merged, param)
		}
	}
	return merged
}

// Clone returns a copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	c := make(Params, len(p))
	copy(c, p)
	return c
}

// Encode returns the URL encoded form ("a=1&b=2") in insertion order.
func (p Params) Encode() string {
	if len(p) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, param := range p {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(param.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(param.Value))
	}
	return sb.String()
}


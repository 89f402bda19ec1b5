package media

// Mapping records that an item is known to one provider instance under a
// given external id.
type Mapping struct {
	ProviderType ProviderType `json:"provider_type"`
	InstanceID   string       `json:"instance_id"`
	ItemID       string       `json:"item_id"`
}

// MappingSet is a set of provider mappings. Order is insertion order and is
// not significant; uniqueness is per full triple.
type MappingSet []Mapping

// Add inserts a mapping if the exact triple is not already present.
// Returns the (possibly grown) set.
func (s MappingSet) Add(m Mapping) MappingSet {
	if s.Contains(m) {
		return s
	}
	return append(s, m)
}

// Union returns the set union of s and other. The receiver's entries keep
// their positions; new entries from other are appended in their own order.
func (s MappingSet) Union(other MappingSet) MappingSet {
	out := make(MappingSet, len(s), len(s)+len(other))
	copy(out, s)
	for _, m := range other {
		out = out.Add(m)
	}
	return out
}

// Contains reports whether the exact triple is present.
func (s MappingSet) Contains(m Mapping) bool {
	for _, have := range s {
		if have == m {
			return true
		}
	}
	return false
}

// HasType reports whether any mapping belongs to the given provider type.
func (s MappingSet) HasType(t ProviderType) bool {
	for _, m := range s {
		if m.ProviderType == t {
			return true
		}
	}
	return false
}

// Types returns the set of provider types present.
func (s MappingSet) Types() map[ProviderType]struct{} {
	out := make(map[ProviderType]struct{}, len(s))
	for _, m := range s {
		out[m.ProviderType] = struct{}{}
	}
	return out
}

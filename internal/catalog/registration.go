package catalog

// Index is the set of catalog item ids the current user is registered for.
// The zero value is an empty index.
type Index struct {
	ids map[string]struct{}
}

// BuildIndex builds an Index from registration records. A nil slice (fetch
// pending, failed, or anonymous user) yields an empty index. Records without
// a usable item id are skipped.
func BuildIndex(regs []RawRegistration) Index {
	if len(regs) == 0 {
		return Index{}
	}
	ids := make(map[string]struct{}, len(regs))
	for _, r := range regs {
		if id, ok := r.itemID(); ok {
			ids[id] = struct{}{}
		}
	}
	return Index{ids: ids}
}

// Contains reports membership for an id in any representation.
func (ix Index) Contains(id any) bool {
	key, ok := NormalizeID(id)
	if !ok {
		return false
	}
	_, found := ix.ids[key]
	return found
}

func (ix Index) Len() int {
	return len(ix.ids)
}

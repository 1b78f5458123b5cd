package result

// DefaultMaxIDs is the maximum number of ids a search response can carry.
const DefaultMaxIDs = 1000

// Result is the outcome of one keyword search: matching ids in task order.
type Result struct {
	ids       []int32
	truncated bool
}

// New creates a Result from ids, keeping at most limit of them (limit <= 0 means unbounded).
func New(ids []int32, limit int) Result {
	if limit > 0 && len(ids) > limit {
		return Result{ids: ids[:limit:limit], truncated: true}
	}
	return Result{ids: ids}
}

// Empty returns a result with no matches.
func Empty() Result { return Result{} }

// IDs returns the matching document ids.
func (r *Result) IDs() []int32 { return r.ids }

// Count returns the number of matching ids.
func (r *Result) Count() int { return len(r.ids) }

// Truncated reports whether matches beyond the cap were dropped.
func (r *Result) Truncated() bool { return r.truncated }

// Builder accumulates ids up to a cap, remembering overflow.
type Builder struct {
	ids       []int32
	limit     int
	truncated bool
}

// NewBuilder creates a Builder capped at limit ids (limit <= 0 means unbounded).
func NewBuilder(limit int) *Builder {
	return &Builder{limit: limit}
}

// Add appends id unless the cap is reached. Returns false once full.
func (b *Builder) Add(id int32) bool {
	if b.limit > 0 && len(b.ids) >= b.limit {
		b.truncated = true
		return false
	}
	b.ids = append(b.ids, id)
	return true
}

// Full reports whether the cap has been reached.
func (b *Builder) Full() bool { return b.limit > 0 && len(b.ids) >= b.limit }

// Result returns the accumulated result.
func (b *Builder) Result() Result {
	return Result{ids: b.ids, truncated: b.truncated}
}

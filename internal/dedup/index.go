package dedup

// Index maps a signature body to the identifier of the first record that
// produced it. Later inserts of a known signature are rejected.
type Index struct {
	ids   map[string]string
	order []string
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{ids: make(map[string]string)}
}

// Add inserts body -> id if body is unknown and reports whether it did.
// When body is already indexed, the existing identifier is returned.
func (x *Index) Add(body, id string) (existing string, added bool) {
	if prev, ok := x.ids[body]; ok {
		return prev, false
	}
	x.ids[body] = id
	x.order = append(x.order, body)
	return id, true
}

// Lookup returns the representative identifier for body.
func (x *Index) Lookup(body string) (string, bool) {
	id, ok := x.ids[body]
	return id, ok
}

// Len returns the number of unique signatures.
func (x *Index) Len() int {
	return len(x.order)
}

// Bucket is one unique signature and its representative record.
type Bucket struct {
	ID   string
	Body string
}

// Buckets returns the indexed signatures in insertion order.
func (x *Index) Buckets() []Bucket {
	out := make([]Bucket, 0, len(x.order))
	for _, body := range x.order {
		out = append(out, Bucket{ID: x.ids[body], Body: body})
	}
	return out
}

package backend

// Desc describes a filled chunk: its handle and the number of valid bytes.
type Desc struct {
	Handle Handle
	Len    int
}

// Ring is a bounded FIFO of descriptors, the in-process equivalent of an
// AF_XDP fill, rx, tx or completion ring.
type Ring struct {
	buf  []Desc
	head int
	n    int
}

// NewRing returns an empty ring holding up to size descriptors.
func NewRing(size int) *Ring {
	return &Ring{buf: make([]Desc, size)}
}

// Push appends d, reporting false when the ring is full.
func (r *Ring) Push(d Desc) bool {
	if r.n == len(r.buf) {
		return false
	}
	r.buf[(r.head+r.n)%len(r.buf)] = d
	r.n++
	return true
}

// Pop removes the oldest descriptor.
func (r *Ring) Pop() (Desc, bool) {
	if r.n == 0 {
		return Desc{}, false
	}
	d := r.buf[r.head]
	r.head = (r.head + 1) % len(r.buf)
	r.n--
	return d, true
}

func (r *Ring) Len() int   { return r.n }
func (r *Ring) Cap() int   { return len(r.buf) }
func (r *Ring) Full() bool { return r.n == len(r.buf) }

package arena

// qband classifies a Chunk by occupancy, the way the teacher's q-list
// buckets classify llrb node utilization bands (llrb/config.go), used
// here to pick profitable chunk search order and to decide when a
// chunk is cold enough to release back to its provider.
type qband int8

const (
	qInit qband = iota // freshly allocated, never yet crossed into q000
	q000               // 0%  <= usage < 25%
	q025               // 25% <= usage < 50%
	q050               // 50% <= usage < 75%
	q075               // 75% <= usage < 100%
	q100               // 100% usage, fully allocated
)

func (b qband) String() string {
	switch b {
	case qInit:
		return "qInit"
	case q000:
		return "q000"
	case q025:
		return "q025"
	case q050:
		return "q050"
	case q075:
		return "q075"
	case q100:
		return "q100"
	}
	return "q?"
}

// bandFor classifies usage in [0,1] into its band, given whether the
// chunk has ever left qInit before. qInit is one-way: once a chunk's
// usage has crossed out of it, bandFor never routes it back there —
// a chunk falls to q000 instead, even at zero usage.
func bandFor(usage float64, everLeftInit bool) qband {
	switch {
	case usage >= 1.0:
		return q100
	case usage >= 0.75:
		return q075
	case usage >= 0.50:
		return q050
	case usage >= 0.25:
		return q025
	case !everLeftInit:
		return qInit
	default:
		return q000
	}
}

// qlist is an intrusive doubly-linked list of Chunks sharing a band,
// ordered by when each chunk entered the band, earliest first (push at
// tail on every move into the band, search from head), mirroring
// the teacher's free-list traversal order in mem_arena.go.
type qlist struct {
	head, tail *Chunk
	band       qband
	len        int
}

func (q *qlist) pushTail(c *Chunk) {
	c.band = q.band
	c.prev, c.next = q.tail, nil
	if q.tail != nil {
		q.tail.next = c
	} else {
		q.head = c
	}
	q.tail = c
	q.len++
}

func (q *qlist) remove(c *Chunk) {
	if c.prev != nil {
		c.prev.next = c.next
	} else {
		q.head = c.next
	}
	if c.next != nil {
		c.next.prev = c.prev
	} else {
		q.tail = c.prev
	}
	c.prev, c.next = nil, nil
	q.len--
}

package crdt

import (
	"fmt"
	"sort"
	"strings"
)

// posBase is the branching factor for position digits. New digits are
// allocated in the open interval (0, posBase) so a generated position
// never ends in 0, which keeps the dense-order property: between any
// two generated positions another one can always be generated.
const posBase = 1 << 16

// ID is the causally-unique identity of a single character. Clock is a
// per-replica logical counter, so (Replica, Clock) pairs never collide.
type ID struct {
	Replica string `json:"replica"`
	Clock   uint64 `json:"clock"`
}

func (id ID) IsZero() bool {
	return id.Replica == "" && id.Clock == 0
}

func (id ID) String() string {
	return fmt.Sprintf("%s:%d", id.Replica, id.Clock)
}

// compareID gives the deterministic tie-break for elements that share a
// position: lower clock first, then lexicographic replica id.
func compareID(a, b ID) int {
	if a.Clock != b.Clock {
		if a.Clock < b.Clock {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Replica, b.Replica)
}

// Element is one character of the sequence together with its dense
// position identifier. Deleted characters stay as tombstones so that
// concurrent operations referencing them remain well-defined.
type Element struct {
	ID  ID     `json:"id"`
	Pos []int  `json:"pos"`
	Ch  string `json:"ch"`
}

type OpKind string

const (
	OpInsert OpKind = "insert"
	OpDelete OpKind = "delete"
)

// Op is the unit of replication. Insert ops carry the fully-positioned
// elements so any replica can apply them without local context; delete
// ops name the target element ids.
type Op struct {
	ID      ID        `json:"opId"`
	Kind    OpKind    `json:"kind"`
	Elems   []Element `json:"elems,omitempty"`
	Targets []ID      `json:"targets,omitempty"`
}

// VersionVector records the highest clock seen from each replica.
type VersionVector map[string]uint64

func (vv VersionVector) Clone() VersionVector {
	out := make(VersionVector, len(vv))
	for k, v := range vv {
		out[k] = v
	}
	return out
}

// Dominates reports whether every entry of other is covered by vv.
func (vv VersionVector) Dominates(other VersionVector) bool {
	for r, c := range other {
		if vv[r] < c {
			return false
		}
	}
	return true
}

type element struct {
	Element
	tombstone bool
}

// Doc is a single replica of the sequence CRDT. All exported methods
// are unsynchronized; callers serialize access per document.
type Doc struct {
	replica string
	clock   uint64
	elems   []element
	byID    map[ID]int // element id -> index in elems, kept in sync on mutation
	gone    map[ID]struct{} // tombstones removed by compaction
	applied map[ID]struct{}
	vv      VersionVector

	// Deletes whose targets have not arrived yet. Retried after every
	// successful insert so causal order holds under shuffled delivery.
	pending []Op
}

func NewDoc(replicaID string) *Doc {
	return &Doc{
		replica: replicaID,
		byID:    make(map[ID]int),
		gone:    make(map[ID]struct{}),
		applied: make(map[ID]struct{}),
		vv:      make(VersionVector),
	}
}

func (d *Doc) Replica() string { return d.replica }

// Text returns the visible content (tombstones excluded).
func (d *Doc) Text() string {
	var b strings.Builder
	for _, e := range d.elems {
		if !e.tombstone {
			b.WriteString(e.Ch)
		}
	}
	return b.String()
}

// Len returns the number of visible characters.
func (d *Doc) Len() int {
	n := 0
	for _, e := range d.elems {
		if !e.tombstone {
			n++
		}
	}
	return n
}

func (d *Doc) VersionVector() VersionVector {
	return d.vv.Clone()
}

func (d *Doc) nextID() ID {
	d.clock++
	return ID{Replica: d.replica, Clock: d.clock}
}

// visibleIndex maps a visible character offset to an index in elems.
// Returns len(elems) when at equals the visible length (append).
func (d *Doc) visibleIndex(at int) (int, error) {
	if at < 0 {
		return 0, fmt.Errorf("negative position %d", at)
	}
	seen := 0
	for i, e := range d.elems {
		if e.tombstone {
			continue
		}
		if seen == at {
			return i, nil
		}
		seen++
	}
	if seen == at {
		return len(d.elems), nil
	}
	return 0, fmt.Errorf("position %d beyond document length %d", at, seen)
}

// LocalInsert inserts text at the given visible offset, applies it to
// this replica and returns the op to broadcast.
func (d *Doc) LocalInsert(at int, text string) (Op, error) {
	if text == "" {
		return Op{}, fmt.Errorf("empty insert")
	}
	idx, err := d.visibleIndex(at)
	if err != nil {
		return Op{}, err
	}

	var left, right []int
	if idx > 0 {
		left = d.elems[idx-1].Pos
	}
	if idx < len(d.elems) {
		right = d.elems[idx].Pos
	}

	runes := []rune(text)
	op := Op{Kind: OpInsert, Elems: make([]Element, 0, len(runes))}
	prev := left
	for _, r := range runes {
		pos := betweenPos(prev, right)
		el := Element{ID: d.nextID(), Pos: pos, Ch: string(r)}
		op.Elems = append(op.Elems, el)
		prev = pos
	}
	op.ID = op.Elems[0].ID

	d.applyInsert(op)
	return op, nil
}

// LocalDelete removes length visible characters starting at offset at,
// applies the tombstones locally and returns the op to broadcast.
func (d *Doc) LocalDelete(at, length int) (Op, error) {
	if length <= 0 {
		return Op{}, fmt.Errorf("non-positive delete length %d", length)
	}
	idx, err := d.visibleIndex(at)
	if err != nil {
		return Op{}, err
	}

	op := Op{ID: d.nextID(), Kind: OpDelete}
	remaining := length
	for i := idx; i < len(d.elems) && remaining > 0; i++ {
		if d.elems[i].tombstone {
			continue
		}
		op.Targets = append(op.Targets, d.elems[i].ID)
		remaining--
	}
	if remaining > 0 {
		return Op{}, fmt.Errorf("delete of %d characters exceeds document length", length)
	}

	d.applyDelete(op)
	return op, nil
}

// Apply merges a remote (or replayed) op. Returns true when the op
// changed state; duplicates and deletes of tombstones are no-ops.
func (d *Doc) Apply(op Op) (bool, error) {
	if _, seen := d.applied[op.ID]; seen {
		return false, nil
	}

	switch op.Kind {
	case OpInsert:
		if len(op.Elems) == 0 {
			return false, fmt.Errorf("insert op %s carries no elements", op.ID)
		}
		d.applyInsert(op)
		d.retryPending()
		return true, nil
	case OpDelete:
		if len(op.Targets) == 0 {
			return false, fmt.Errorf("delete op %s carries no targets", op.ID)
		}
		if !d.hasAllTargets(op) {
			// Causal dependency not yet satisfied; park the op until
			// the missing inserts arrive.
			d.pending = append(d.pending, op)
			return false, nil
		}
		d.applyDelete(op)
		return true, nil
	default:
		return false, fmt.Errorf("unknown op kind %q", op.Kind)
	}
}

func (d *Doc) hasAllTargets(op Op) bool {
	for _, t := range op.Targets {
		if _, ok := d.byID[t]; ok {
			continue
		}
		// A target GC'd by tombstone compaction counts as present:
		// deleting already-deleted content is a no-op.
		if _, ok := d.gone[t]; ok {
			continue
		}
		return false
	}
	return true
}

func (d *Doc) retryPending() {
	if len(d.pending) == 0 {
		return
	}
	queued := d.pending
	d.pending = nil
	for _, op := range queued {
		if _, seen := d.applied[op.ID]; seen {
			continue
		}
		if d.hasAllTargets(op) {
			d.applyDelete(op)
		} else {
			d.pending = append(d.pending, op)
		}
	}
}

func (d *Doc) applyInsert(op Op) {
	for _, el := range op.Elems {
		if _, ok := d.byID[el.ID]; ok {
			continue
		}
		if _, ok := d.gone[el.ID]; ok {
			continue
		}
		idx := sort.Search(len(d.elems), func(i int) bool {
			return d.less(el, d.elems[i].Element)
		})
		d.elems = append(d.elems, element{})
		copy(d.elems[idx+1:], d.elems[idx:])
		d.elems[idx] = element{Element: el}
		d.reindexFrom(idx)
		d.bumpVV(el.ID)
	}
	d.applied[op.ID] = struct{}{}
	d.bumpVV(op.ID)
}

func (d *Doc) applyDelete(op Op) {
	for _, t := range op.Targets {
		if idx, ok := d.byID[t]; ok {
			d.elems[idx].tombstone = true
		}
	}
	d.applied[op.ID] = struct{}{}
	d.bumpVV(op.ID)
}

func (d *Doc) bumpVV(id ID) {
	if d.vv[id.Replica] < id.Clock {
		d.vv[id.Replica] = id.Clock
	}
	if id.Replica == d.replica && d.clock < id.Clock {
		d.clock = id.Clock
	}
}

func (d *Doc) reindexFrom(idx int) {
	for i := idx; i < len(d.elems); i++ {
		d.byID[d.elems[i].ID] = i
	}
}

// less orders elements by position, with the (clock, replica) id
// tie-break for concurrent inserts that allocated the same position.
func (d *Doc) less(a, b Element) bool {
	if c := comparePos(a.Pos, b.Pos); c != 0 {
		return c < 0
	}
	return compareID(a.ID, b.ID) < 0
}

// comparePos orders positions lexicographically; a strict prefix sorts
// before its extensions.
func comparePos(a, b []int) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) == len(b):
		return 0
	case len(a) < len(b):
		return -1
	default:
		return 1
	}
}

// betweenPos generates a fresh position strictly between left and
// right. Nil left means the head of the document, nil right the tail.
func betweenPos(left, right []int) []int {
	out := make([]int, 0, len(left)+1)
	for i := 0; ; i++ {
		lo := 0
		if i < len(left) {
			lo = left[i]
		}
		hi := posBase
		if i < len(right) {
			hi = right[i]
		}
		if hi-lo > 1 {
			return append(out, lo+(hi-lo)/2)
		}
		out = append(out, lo)
	}
}

// Compact drops tombstoned elements whose ids every replica has
// acknowledged (acked dominates them) and prunes the applied-op set.
// Pending deletes targeting compacted ids resolve as no-ops.
func (d *Doc) Compact(acked VersionVector) int {
	removed := 0
	kept := d.elems[:0]
	for _, e := range d.elems {
		if e.tombstone && acked[e.ID.Replica] >= e.ID.Clock {
			delete(d.byID, e.ID)
			d.gone[e.ID] = struct{}{}
			removed++
			continue
		}
		kept = append(kept, e)
	}
	d.elems = kept
	d.reindexFrom(0)
	for id := range d.applied {
		if acked[id.Replica] >= id.Clock {
			delete(d.applied, id)
		}
	}
	d.retryPending()
	return removed
}

// Seed loads plain text into an empty document, attributing the
// elements to this replica. Used when a replica is recreated from a
// persisted snapshot.
func (d *Doc) Seed(text string) error {
	if len(d.elems) > 0 {
		return fmt.Errorf("seed called on non-empty document")
	}
	if text == "" {
		return nil
	}
	_, err := d.LocalInsert(0, text)
	return err
}

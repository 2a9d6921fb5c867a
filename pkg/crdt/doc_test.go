package crdt

import (
	"math/rand"
	"testing"
)

func TestLocalInsertAndDelete(t *testing.T) {
	d := NewDoc("r1")

	if _, err := d.LocalInsert(0, "hello"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := d.LocalInsert(5, " world"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := d.Text(); got != "hello world" {
		t.Errorf("Text = %q, want %q", got, "hello world")
	}

	if _, err := d.LocalDelete(5, 6); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := d.Text(); got != "hello" {
		t.Errorf("Text after delete = %q, want %q", got, "hello")
	}
	if d.Len() != 5 {
		t.Errorf("Len = %d, want 5", d.Len())
	}
}

func TestInsertPositionValidation(t *testing.T) {
	d := NewDoc("r1")
	if _, err := d.LocalInsert(3, "x"); err == nil {
		t.Error("insert beyond length should fail")
	}
	if _, err := d.LocalInsert(-1, "x"); err == nil {
		t.Error("negative position should fail")
	}
	if _, err := d.LocalDelete(0, 1); err == nil {
		t.Error("delete from empty document should fail")
	}
	if _, err := d.LocalInsert(0, ""); err == nil {
		t.Error("empty insert should fail")
	}
}

// Two replicas insert at position 0 concurrently, then exchange ops.
// Both must converge to the same two-character text.
func TestConcurrentInsertTieBreak(t *testing.T) {
	a := NewDoc("alice")
	b := NewDoc("bob")

	opA, err := a.LocalInsert(0, "A")
	if err != nil {
		t.Fatalf("alice insert: %v", err)
	}
	opB, err := b.LocalInsert(0, "B")
	if err != nil {
		t.Fatalf("bob insert: %v", err)
	}

	if _, err := a.Apply(opB); err != nil {
		t.Fatalf("alice apply: %v", err)
	}
	if _, err := b.Apply(opA); err != nil {
		t.Fatalf("bob apply: %v", err)
	}

	if a.Text() != b.Text() {
		t.Fatalf("replicas diverged: alice=%q bob=%q", a.Text(), b.Text())
	}
	if got := a.Text(); got != "AB" && got != "BA" {
		t.Errorf("merged text = %q, want AB or BA", got)
	}
}

func TestApplyIdempotence(t *testing.T) {
	a := NewDoc("alice")
	b := NewDoc("bob")

	op, err := a.LocalInsert(0, "hi")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	changed, err := b.Apply(op)
	if err != nil || !changed {
		t.Fatalf("first apply: changed=%v err=%v", changed, err)
	}
	for i := 0; i < 100; i++ {
		changed, err := b.Apply(op)
		if err != nil {
			t.Fatalf("reapply %d: %v", i, err)
		}
		if changed {
			t.Fatalf("reapply %d reported a state change", i)
		}
	}
	if b.Text() != "hi" {
		t.Errorf("Text = %q after 101 applies, want %q", b.Text(), "hi")
	}
}

// A delete that arrives before the insert it depends on must be held
// back, then applied once the insert lands.
func TestDeleteBeforeInsertIsBuffered(t *testing.T) {
	a := NewDoc("alice")
	b := NewDoc("bob")

	ins, _ := a.LocalInsert(0, "abc")
	del, _ := a.LocalDelete(1, 1)

	if _, err := b.Apply(del); err != nil {
		t.Fatalf("early delete: %v", err)
	}
	if b.Text() != "" {
		t.Fatalf("delete applied before its insert: %q", b.Text())
	}
	if _, err := b.Apply(ins); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := b.Text(); got != "ac" {
		t.Errorf("Text = %q, want %q", got, "ac")
	}
}

func TestDeleteOfDeletedIsNoop(t *testing.T) {
	a := NewDoc("alice")
	b := NewDoc("bob")

	ins, _ := a.LocalInsert(0, "x")
	if _, err := b.Apply(ins); err != nil {
		t.Fatal(err)
	}

	// Both replicas delete the same character concurrently.
	delA, _ := a.LocalDelete(0, 1)
	delB, _ := b.LocalDelete(0, 1)

	if _, err := a.Apply(delB); err != nil {
		t.Fatalf("delete of tombstone errored: %v", err)
	}
	if _, err := b.Apply(delA); err != nil {
		t.Fatalf("delete of tombstone errored: %v", err)
	}
	if a.Text() != "" || b.Text() != "" {
		t.Errorf("texts = %q / %q, want empty", a.Text(), b.Text())
	}
}

func TestCompactDropsAckedTombstones(t *testing.T) {
	d := NewDoc("r1")
	if _, err := d.LocalInsert(0, "abcdef"); err != nil {
		t.Fatal(err)
	}
	del, err := d.LocalDelete(1, 3)
	if err != nil {
		t.Fatal(err)
	}

	removed := d.Compact(d.VersionVector())
	if removed != 3 {
		t.Errorf("Compact removed %d, want 3", removed)
	}
	if got := d.Text(); got != "aef" {
		t.Errorf("Text = %q, want %q", got, "aef")
	}

	// Redelivery of the compacted delete stays a no-op.
	changed, err := d.Apply(del)
	if err != nil {
		t.Fatalf("reapply compacted delete: %v", err)
	}
	if changed {
		t.Error("compacted delete reapplied as a change")
	}
}

func TestSeedFromSnapshot(t *testing.T) {
	d := NewDoc("server")
	if err := d.Seed("persisted content"); err != nil {
		t.Fatal(err)
	}
	if d.Text() != "persisted content" {
		t.Errorf("Text = %q", d.Text())
	}
	if err := d.Seed("again"); err == nil {
		t.Error("seeding a non-empty document should fail")
	}
}

// Convergence property: N clients generate random concurrent edits;
// every replica receives the full op set in its own shuffled order and
// all end with identical text.
func TestConvergenceUnderShuffledDelivery(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	replicas := []string{"alice", "bob", "carol"}

	var ops []Op
	live := make(map[string]*Doc, len(replicas))
	for _, r := range replicas {
		live[r] = NewDoc(r)
	}

	alphabet := "abcdefghijklmnopqrstuvwxyz"
	for round := 0; round < 40; round++ {
		for _, r := range replicas {
			d := live[r]
			if d.Len() > 0 && rng.Intn(3) == 0 {
				at := rng.Intn(d.Len())
				length := 1 + rng.Intn(d.Len()-at)
				op, err := d.LocalDelete(at, length)
				if err != nil {
					t.Fatalf("%s delete: %v", r, err)
				}
				ops = append(ops, op)
			} else {
				at := 0
				if d.Len() > 0 {
					at = rng.Intn(d.Len() + 1)
				}
				text := string(alphabet[rng.Intn(len(alphabet))]) + string(alphabet[rng.Intn(len(alphabet))])
				op, err := d.LocalInsert(at, text)
				if err != nil {
					t.Fatalf("%s insert: %v", r, err)
				}
				ops = append(ops, op)
			}
		}
		// Periodically sync the live replicas so deletes can target
		// remote characters too.
		if round%5 == 4 {
			for _, d := range live {
				for _, op := range ops {
					if _, err := d.Apply(op); err != nil {
						t.Fatalf("sync apply: %v", err)
					}
				}
			}
		}
	}

	var texts []string
	for trial := 0; trial < 5; trial++ {
		shuffled := make([]Op, len(ops))
		copy(shuffled, ops)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		fresh := NewDoc("observer")
		for _, op := range shuffled {
			if _, err := fresh.Apply(op); err != nil {
				t.Fatalf("trial %d apply: %v", trial, err)
			}
		}
		texts = append(texts, fresh.Text())
	}

	for i := 1; i < len(texts); i++ {
		if texts[i] != texts[0] {
			t.Fatalf("trial %d diverged:\n%q\nvs\n%q", i, texts[i], texts[0])
		}
	}
}

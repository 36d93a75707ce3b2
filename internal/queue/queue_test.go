package queue

import (
	"fmt"
	"sync"
	"testing"

	"pulso/internal/model"
)

func item(id string) model.QueuedItem {
	return model.QueuedItem{CorrelationID: id, Amount: 10}
}

func TestEnqueueAndClaimBatch(t *testing.T) {
	q := NewDispatchQueue(10)

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(item(fmt.Sprintf("id-%d", i))); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	batch := q.ClaimBatch(3)
	if len(batch) != 3 {
		t.Fatalf("Expected batch of 3, got %d", len(batch))
	}
	if batch[0].CorrelationID != "id-0" {
		t.Errorf("Expected head item id-0 first, got %s", batch[0].CorrelationID)
	}
	if q.Len() != 2 {
		t.Errorf("Expected 2 items left queued, got %d", q.Len())
	}
	if q.InFlightCount() != 3 {
		t.Errorf("Expected 3 in-flight claims, got %d", q.InFlightCount())
	}
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	q := NewDispatchQueue(2)

	q.Enqueue(item("a"))
	q.Enqueue(item("b"))

	if err := q.Enqueue(item("c")); err != model.ErrQueueFull {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
}

func TestClaimBatchSkipsInFlightIDs(t *testing.T) {
	q := NewDispatchQueue(10)

	q.Enqueue(item("x"))
	if got := q.ClaimBatch(1); len(got) != 1 {
		t.Fatalf("Expected first claim to return x, got %d items", len(got))
	}

	// Same id lands back in the queue while the first claim is still open.
	q.Requeue(item("x"))
	if got := q.ClaimBatch(5); len(got) != 0 {
		t.Fatalf("Claimed %d items while x was still in-flight", len(got))
	}

	q.Release("x")
	got := q.ClaimBatch(5)
	if len(got) != 1 || got[0].CorrelationID != "x" {
		t.Errorf("Expected x claimable after release, got %v", got)
	}
}

func TestRequeueIncrementsAttempt(t *testing.T) {
	q := NewDispatchQueue(10)

	it := item("r")
	it.Attempt = 2
	q.Requeue(it)

	got := q.ClaimBatch(1)
	if len(got) != 1 {
		t.Fatalf("Expected requeued item to be claimable")
	}
	if got[0].Attempt != 3 {
		t.Errorf("Expected attempt 3 after requeue, got %d", got[0].Attempt)
	}
}

func TestRequeueIgnoresCapacity(t *testing.T) {
	q := NewDispatchQueue(1)

	q.Enqueue(item("a"))
	q.Requeue(item("b"))

	if q.Len() != 2 {
		t.Errorf("Expected requeue to bypass capacity, queue has %d items", q.Len())
	}
}

func TestConcurrentClaimNeverDoubleClaims(t *testing.T) {
	q := NewDispatchQueue(1000)

	const total = 500
	for i := 0; i < total; i++ {
		q.Enqueue(item(fmt.Sprintf("id-%d", i)))
	}

	var mu sync.Mutex
	seen := make(map[string]int)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				batch := q.ClaimBatch(20)
				if len(batch) == 0 {
					return
				}
				mu.Lock()
				for _, it := range batch {
					seen[it.CorrelationID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != total {
		t.Fatalf("Expected %d distinct claims, got %d", total, len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("Item %s claimed %d times", id, n)
		}
	}
}

func TestDuplicateEnqueueKeepsIDTracked(t *testing.T) {
	q := NewDispatchQueue(10)

	q.Enqueue(item("dup"))
	q.Enqueue(item("dup"))

	// Claiming the first copy leaves the second queued; skipping by
	// in-flight id means the batch stops at one.
	if got := q.ClaimBatch(2); len(got) != 1 {
		t.Fatalf("Expected 1 claim with duplicate id queued, got %d", len(got))
	}
	if !q.Has("dup") {
		t.Error("Expected Has true while a second copy is still queued")
	}

	q.Release("dup")
	if q.Adopt(item("dup")) {
		t.Error("Adopt accepted an id whose second copy is still queued")
	}

	if got := q.ClaimBatch(1); len(got) != 1 {
		t.Fatal("Expected the second copy to be claimable after release")
	}
	q.Release("dup")
	if q.Has("dup") {
		t.Error("Expected Has false once the last copy left the queue")
	}
}

func TestAdoptSkipsKnownIDs(t *testing.T) {
	q := NewDispatchQueue(10)

	q.Enqueue(item("known"))
	if q.Adopt(item("known")) {
		t.Error("Adopt accepted an id that is already queued")
	}

	q.ClaimBatch(1)
	if q.Adopt(item("known")) {
		t.Error("Adopt accepted an id that is in-flight")
	}

	adopted := model.QueuedItem{CorrelationID: "peer", Amount: 5, Attempt: 4}
	if !q.Adopt(adopted) {
		t.Fatal("Adopt rejected an unknown id")
	}
	got := q.ClaimBatch(1)
	if len(got) != 1 || got[0].Attempt != 4 {
		t.Errorf("Expected adopted item to keep attempt 4, got %v", got)
	}
}

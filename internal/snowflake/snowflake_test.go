package snowflake

import (
	"sync"
	"testing"
)

func TestNewNode_Range(t *testing.T) {
	if _, err := NewNode(-1); err != ErrInvalidNodeID {
		t.Errorf("Expected ErrInvalidNodeID, got %v", err)
	}
	if _, err := NewNode(maxNodeID + 1); err != ErrInvalidNodeID {
		t.Errorf("Expected ErrInvalidNodeID, got %v", err)
	}
	if _, err := NewNode(maxNodeID); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestGenerate_MonotonicAndUnique(t *testing.T) {
	node, err := NewNode(1)
	if err != nil {
		t.Fatal(err)
	}

	var prev int64
	for i := 0; i < 10000; i++ {
		id := node.Generate()
		if id <= prev {
			t.Fatalf("id %d is not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestGenerate_Concurrent(t *testing.T) {
	node, _ := NewNode(2)

	var mu sync.Mutex
	seen := make(map[int64]struct{})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				id := node.Generate()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 8000 {
		t.Errorf("Expected 8000 unique ids, got %d", len(seen))
	}
}

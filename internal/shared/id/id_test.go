package id

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
)

func TestGenerateString(t *testing.T) {
	gen := NewGenerator()

	id := gen.GenerateString()

	if len(id) != 26 {
		t.Errorf("ULID should be 26 characters, got %d", len(id))
	}
}

func TestGenerateSortsByCreation(t *testing.T) {
	gen := NewGenerator()

	ids := make([]string, 50)
	for i := range ids {
		ids[i] = gen.GenerateString()
	}

	if !sort.StringsAreSorted(ids) {
		t.Error("Generated ULIDs should sort in creation order")
	}
}

func TestProjectKey(t *testing.T) {
	key := NewProjectKey()

	if !strings.HasPrefix(string(key), "proj_") {
		t.Errorf("ProjectKey should start with 'proj_', got: %s", key)
	}
	if len(strings.TrimPrefix(key.String(), "proj_")) != 26 {
		t.Errorf("ProjectKey should end in a 26 character ULID: %s", key)
	}
}

func TestTypedIDFormat(t *testing.T) {
	ids := map[string]string{
		"proj": string(NewProjectKey()),
		"req":  string(NewRequestID()),
		"run":  string(NewRunID()),
	}

	for prefix, id := range ids {
		parts := strings.Split(id, "_")
		if len(parts) != 2 {
			t.Errorf("ID should have format 'prefix_ulid', got: %s", id)
			continue
		}
		if parts[0] != prefix {
			t.Errorf("Expected prefix '%s', got '%s' in ID: %s", prefix, parts[0], id)
		}
		if len(parts[1]) != 26 {
			t.Errorf("ULID should be 26 characters, got %d in ID: %s", len(parts[1]), id)
		}
	}
}

func TestHostedID(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-zA-Z0-9]{12}$`)
	seen := make(map[string]bool)

	for i := 0; i < 200; i++ {
		id := NewHostedID()
		if !pattern.MatchString(id) {
			t.Fatalf("Hosted id has wrong shape: %q", id)
		}
		if seen[id] {
			t.Fatalf("Duplicate hosted id: %s", id)
		}
		seen[id] = true
	}
}

func TestConcurrentGeneration(t *testing.T) {
	const goroutines = 50
	const perGoroutine = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[ProjectKey]bool, goroutines*perGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				key := NewProjectKey()
				mu.Lock()
				if seen[key] {
					t.Errorf("Duplicate key: %s", key)
				}
				seen[key] = true
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
}

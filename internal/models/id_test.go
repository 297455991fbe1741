package models_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/example/whatsapp-gateway/internal/models"
)

func TestNewMessageIDFormat(t *testing.T) {
	id := models.NewMessageID()
	if !strings.HasPrefix(id, "msg_") {
		t.Fatalf("unexpected id prefix: %q", id)
	}
	if parts := strings.Split(id, "_"); len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		t.Fatalf("expected msg_<epoch>_<random>, got %q", id)
	}
}

func TestNewMessageIDUniqueUnderConcurrency(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 250

	var mu sync.Mutex
	seen := make(map[string]bool, goroutines*perGoroutine)
	var wg sync.WaitGroup

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]string, 0, perGoroutine)
			for i := 0; i < perGoroutine; i++ {
				ids = append(ids, models.NewMessageID())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				if seen[id] {
					t.Errorf("duplicate id generated: %s", id)
				}
				seen[id] = true
			}
		}()
	}
	wg.Wait()
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/storage"
)

func TestPoolAccountStore_InsertAndGet(t *testing.T) {
	store := NewPoolAccountStore()
	ctx := context.Background()

	acct := &domain.PoolAccount{Address: "acct1", Credential: "cred1", ImportedAt: 1000}
	if err := store.Insert(ctx, acct); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByAddress(ctx, "acct1")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if !got.Free() {
		t.Error("Fresh account should be free")
	}
	if got.Credential != "cred1" {
		t.Errorf("Credential mismatch: got %s", got.Credential)
	}
}

func TestPoolAccountStore_InsertIgnoresAssignment(t *testing.T) {
	store := NewPoolAccountStore()
	ctx := context.Background()

	// Import never carries an assignment; the store enforces it.
	acct := &domain.PoolAccount{Address: "acct1", Credential: "c", AssignedTo: "sneaky"}
	if err := store.Insert(ctx, acct); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, _ := store.GetByAddress(ctx, "acct1")
	if !got.Free() {
		t.Error("Inserted account must start free")
	}
}

func TestPoolAccountStore_Duplicate(t *testing.T) {
	store := NewPoolAccountStore()
	ctx := context.Background()

	acct := &domain.PoolAccount{Address: "acct1", Credential: "c"}
	if err := store.Insert(ctx, acct); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.Insert(ctx, acct); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestPoolAccountStore_ClaimFirstFree(t *testing.T) {
	store := NewPoolAccountStore()
	ctx := context.Background()

	for _, addr := range []string{"acct3", "acct1", "acct2"} {
		if err := store.Insert(ctx, &domain.PoolAccount{Address: addr, Credential: "c"}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	acct, err := store.Claim(ctx, "agent1")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if acct.Address != "acct1" {
		t.Errorf("Claim should pick first address: got %s, want acct1", acct.Address)
	}
	if acct.AssignedTo != "agent1" {
		t.Errorf("AssignedTo mismatch: got %s", acct.AssignedTo)
	}

	second, err := store.Claim(ctx, "agent2")
	if err != nil {
		t.Fatalf("Second claim failed: %v", err)
	}
	if second.Address != "acct2" {
		t.Errorf("Second claim should pick acct2, got %s", second.Address)
	}
}

func TestPoolAccountStore_ClaimExhausted(t *testing.T) {
	store := NewPoolAccountStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.PoolAccount{Address: "acct1", Credential: "c"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := store.Claim(ctx, "agent1"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	_, err := store.Claim(ctx, "agent2")
	if !errors.Is(err, storage.ErrNoFreeAccount) {
		t.Errorf("Expected ErrNoFreeAccount, got %v", err)
	}
}

// Under N concurrent claims with only M < N free accounts, exactly M must
// succeed and no account may be handed out twice.
func TestPoolAccountStore_ConcurrentClaims(t *testing.T) {
	store := NewPoolAccountStore()
	ctx := context.Background()

	const free = 10
	const claimers = 50

	for i := 0; i < free; i++ {
		acct := &domain.PoolAccount{Address: fmt.Sprintf("acct%02d", i), Credential: "c"}
		if err := store.Insert(ctx, acct); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	var wg sync.WaitGroup
	results := make(chan *domain.PoolAccount, claimers)
	exhausted := make(chan error, claimers)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			acct, err := store.Claim(ctx, fmt.Sprintf("agent%02d", id))
			if err != nil {
				exhausted <- err
				return
			}
			results <- acct
		}(i)
	}
	wg.Wait()
	close(results)
	close(exhausted)

	seen := make(map[string]bool)
	for acct := range results {
		if seen[acct.Address] {
			t.Errorf("Account %s claimed twice", acct.Address)
		}
		seen[acct.Address] = true
	}
	if len(seen) != free {
		t.Errorf("Expected %d successful claims, got %d", free, len(seen))
	}

	failures := 0
	for err := range exhausted {
		if !errors.Is(err, storage.ErrNoFreeAccount) {
			t.Errorf("Expected ErrNoFreeAccount, got %v", err)
		}
		failures++
	}
	if failures != claimers-free {
		t.Errorf("Expected %d exhausted claims, got %d", claimers-free, failures)
	}

	remaining, _ := store.CountFree(ctx)
	if remaining != 0 {
		t.Errorf("Expected 0 free accounts, got %d", remaining)
	}
}

func TestPoolAccountStore_GetByAgentID(t *testing.T) {
	store := NewPoolAccountStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.PoolAccount{Address: "acct1", Credential: "c"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := store.Claim(ctx, "agent1"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	acct, err := store.GetByAgentID(ctx, "agent1")
	if err != nil {
		t.Fatalf("GetByAgentID failed: %v", err)
	}
	if acct.Address != "acct1" {
		t.Errorf("Wrong account: %s", acct.Address)
	}

	if _, err := store.GetByAgentID(ctx, "agent2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPoolAccountStore_Counts(t *testing.T) {
	store := NewPoolAccountStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		acct := &domain.PoolAccount{Address: fmt.Sprintf("acct%d", i), Credential: "c"}
		if err := store.Insert(ctx, acct); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if _, err := store.Claim(ctx, "agent1"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	total, _ := store.CountTotal(ctx)
	free, _ := store.CountFree(ctx)
	if total != 3 {
		t.Errorf("CountTotal mismatch: got %d, want 3", total)
	}
	if free != 2 {
		t.Errorf("CountFree mismatch: got %d, want 2", free)
	}
}

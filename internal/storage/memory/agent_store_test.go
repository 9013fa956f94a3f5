package memory

import (
	"context"
	"errors"
	"testing"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/storage"
)

func TestAgentStore_InsertAndGet(t *testing.T) {
	store := NewAgentStore()
	ctx := context.Background()

	a := &domain.Agent{
		ID:              "agent1",
		ExternalAddress: "addr1",
		AssignedAccount: "acct1",
		InitialCapital:  1000,
		Status:          domain.AgentStatusActive,
		CreatedAt:       1704067200000,
	}

	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "agent1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.ExternalAddress != "addr1" {
		t.Errorf("ExternalAddress mismatch: got %s, want addr1", got.ExternalAddress)
	}
	if got.InitialCapital != 1000 {
		t.Errorf("InitialCapital mismatch: got %v, want 1000", got.InitialCapital)
	}

	byAddr, err := store.GetByAddress(ctx, "addr1")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if byAddr.ID != "agent1" {
		t.Errorf("GetByAddress returned wrong agent: %s", byAddr.ID)
	}
}

func TestAgentStore_DuplicateID(t *testing.T) {
	store := NewAgentStore()
	ctx := context.Background()

	a := &domain.Agent{ID: "agent1", ExternalAddress: "addr1", Status: domain.AgentStatusActive}
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	dup := &domain.Agent{ID: "agent1", ExternalAddress: "addr2", Status: domain.AgentStatusActive}
	if err := store.Insert(ctx, dup); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestAgentStore_DuplicateAddress(t *testing.T) {
	store := NewAgentStore()
	ctx := context.Background()

	a := &domain.Agent{ID: "agent1", ExternalAddress: "addr1", Status: domain.AgentStatusActive}
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	dup := &domain.Agent{ID: "agent2", ExternalAddress: "addr1", Status: domain.AgentStatusActive}
	if err := store.Insert(ctx, dup); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for duplicate address, got %v", err)
	}
}

func TestAgentStore_NotFound(t *testing.T) {
	store := NewAgentStore()
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "nonexistent"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetByAddress(ctx, "nonexistent"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAgentStore_Update(t *testing.T) {
	store := NewAgentStore()
	ctx := context.Background()

	a := &domain.Agent{ID: "agent1", ExternalAddress: "addr1", Status: domain.AgentStatusActive}
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	a.Status = domain.AgentStatusRevoked
	a.TradeCount = 7
	a.CumulativeRealizedPnl = 150
	a.AgentShareAccrued = 120
	a.FirmShareAccrued = 30
	if err := store.Update(ctx, a); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.GetByID(ctx, "agent1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.AgentStatusRevoked {
		t.Errorf("Status not updated: got %s", got.Status)
	}
	if got.TradeCount != 7 {
		t.Errorf("TradeCount not updated: got %d", got.TradeCount)
	}
	if got.CumulativeRealizedPnl != 150 || got.AgentShareAccrued != 120 || got.FirmShareAccrued != 30 {
		t.Errorf("Totals not updated: %+v", got)
	}
}

func TestAgentStore_UpdateNotFound(t *testing.T) {
	store := NewAgentStore()
	ctx := context.Background()

	err := store.Update(ctx, &domain.Agent{ID: "ghost"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAgentStore_ReturnsCopies(t *testing.T) {
	store := NewAgentStore()
	ctx := context.Background()

	a := &domain.Agent{ID: "agent1", ExternalAddress: "addr1", Status: domain.AgentStatusActive}
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, _ := store.GetByID(ctx, "agent1")
	got.Status = domain.AgentStatusRevoked

	again, _ := store.GetByID(ctx, "agent1")
	if again.Status != domain.AgentStatusActive {
		t.Error("Mutating a returned agent must not affect the store")
	}
}

func TestAgentStore_ListFilterAndOrder(t *testing.T) {
	store := NewAgentStore()
	ctx := context.Background()

	agents := []*domain.Agent{
		{ID: "b", ExternalAddress: "a2", Status: domain.AgentStatusActive, CreatedAt: 2000},
		{ID: "a", ExternalAddress: "a1", Status: domain.AgentStatusRevoked, CreatedAt: 1000},
		{ID: "c", ExternalAddress: "a3", Status: domain.AgentStatusActive, CreatedAt: 2000},
	}
	for _, a := range agents {
		if err := store.Insert(ctx, a); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := store.List(ctx, nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 agents, got %d", len(all))
	}
	if all[0].ID != "a" || all[1].ID != "b" || all[2].ID != "c" {
		t.Errorf("Wrong order: %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
	}

	active := domain.AgentStatusActive
	filtered, err := store.List(ctx, &active)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("Expected 2 active agents, got %d", len(filtered))
	}
}

func TestAgentStore_InvalidInput(t *testing.T) {
	store := NewAgentStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, &domain.Agent{ID: ""}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty ID, got %v", err)
	}
}

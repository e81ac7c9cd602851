// Package leads maintains the client-side view of the lead pipeline:
// one ordered partition per status, mutated optimistically around API
// calls, plus the server-computed statistics.
package leads

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/corvandale/leadctl/internal/model"
)

// Client is the slice of the API client the board needs.
type Client interface {
	LeadsByStatus(ctx context.Context) (model.LeadsByStatus, error)
	LeadStatistics(ctx context.Context) (model.LeadStatistics, error)
	CreateLead(ctx context.Context, input model.CreateLead) (model.Lead, error)
	UpdateLead(ctx context.Context, id int64, update model.UpdateLead) (model.Lead, error)
	UpdateLeadStatus(ctx context.Context, id int64, status model.LeadStatus) (model.Lead, error)
	DeleteLead(ctx context.Context, id int64) error
}

type Board struct {
	client Client

	mu         sync.Mutex
	partitions map[model.LeadStatus][]model.Lead
	stats      model.LeadStatistics
}

func NewBoard(client Client) *Board {
	return &Board{
		client:     client,
		partitions: emptyPartitions(),
	}
}

func emptyPartitions() map[model.LeadStatus][]model.Lead {
	return map[model.LeadStatus][]model.Lead{
		model.StatusNewLead:  {},
		model.StatusLeadSent: {},
		model.StatusDealDone: {},
	}
}

// Load fetches the partitioned pipeline and then the statistics.
func (b *Board) Load(ctx context.Context) error {
	byStatus, err := b.client.LeadsByStatus(ctx)
	if err != nil {
		return fmt.Errorf("load leads: %w", err)
	}
	stats, err := b.client.LeadStatistics(ctx)
	if err != nil {
		return fmt.Errorf("load statistics: %w", err)
	}

	b.mu.Lock()
	b.partitions = map[model.LeadStatus][]model.Lead{
		model.StatusNewLead:  append([]model.Lead{}, byStatus.NewLead...),
		model.StatusLeadSent: append([]model.Lead{}, byStatus.LeadSent...),
		model.StatusDealDone: append([]model.Lead{}, byStatus.DealDone...),
	}
	b.stats = stats
	b.mu.Unlock()
	return nil
}

// Partition returns a copy of the sequence for one status.
func (b *Board) Partition(status model.LeadStatus) []model.Lead {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Lead{}, b.partitions[status]...)
}

// Snapshot returns a copy of all three partitions.
func (b *Board) Snapshot() model.LeadsByStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.LeadsByStatus{
		NewLead:  append([]model.Lead{}, b.partitions[model.StatusNewLead]...),
		LeadSent: append([]model.Lead{}, b.partitions[model.StatusLeadSent]...),
		DealDone: append([]model.Lead{}, b.partitions[model.StatusDealDone]...),
	}
}

func (b *Board) Statistics() model.LeadStatistics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Find returns the lead with the given id and the partition holding it.
func (b *Board) Find(id int64) (model.Lead, model.LeadStatus, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for status, list := range b.partitions {
		for _, lead := range list {
			if lead.ID == id {
				return lead, status, true
			}
		}
	}
	return model.Lead{}, "", false
}

// Create posts a new lead and appends it to its partition. The total and
// new-lead counters are patched locally; other aggregates stay stale
// until the next full refresh.
func (b *Board) Create(ctx context.Context, input model.CreateLead) (model.Lead, error) {
	lead, err := b.client.CreateLead(ctx, input)
	if err != nil {
		return model.Lead{}, err
	}

	b.mu.Lock()
	b.partitions[lead.Status] = append(b.partitions[lead.Status], lead)
	b.stats.TotalLeads++
	if lead.Status == model.StatusNewLead {
		b.stats.NewLeads++
	}
	b.mu.Unlock()
	return lead, nil
}

// ChangeStatus moves a lead to a new partition and re-fetches the
// statistics from the server. The local mutation happens before the
// statistics fetch; a failed fetch leaves the old aggregates in place.
func (b *Board) ChangeStatus(ctx context.Context, id int64, status model.LeadStatus) (model.Lead, error) {
	if !status.Valid() {
		return model.Lead{}, fmt.Errorf("invalid status %q", status)
	}

	lead, err := b.client.UpdateLeadStatus(ctx, id, status)
	if err != nil {
		return model.Lead{}, err
	}

	b.mu.Lock()
	b.removeLocked(id)
	b.partitions[lead.Status] = append(b.partitions[lead.Status], lead)
	b.mu.Unlock()

	if err := b.RefreshStatistics(ctx); err != nil {
		slog.Warn("statistics refresh after status change failed", "lead_id", id, "error", err)
	}
	return lead, nil
}

// Update patches a lead. An edit that keeps the status replaces the lead
// in place; a status change re-partitions like ChangeStatus.
func (b *Board) Update(ctx context.Context, id int64, update model.UpdateLead) (model.Lead, error) {
	_, previous, found := b.Find(id)
	if !found {
		return model.Lead{}, fmt.Errorf("lead %d not in local cache", id)
	}

	lead, err := b.client.UpdateLead(ctx, id, update)
	if err != nil {
		return model.Lead{}, err
	}

	if lead.Status == previous {
		b.mu.Lock()
		list := b.partitions[previous]
		for i := range list {
			if list[i].ID == id {
				list[i] = lead
				break
			}
		}
		b.mu.Unlock()
		return lead, nil
	}

	b.mu.Lock()
	b.removeLocked(id)
	b.partitions[lead.Status] = append(b.partitions[lead.Status], lead)
	b.mu.Unlock()

	if err := b.RefreshStatistics(ctx); err != nil {
		slog.Warn("statistics refresh after update failed", "lead_id", id, "error", err)
	}
	return lead, nil
}

// Delete removes a lead after the confirm callback approves it. It
// reports whether the delete happened. Only the total counter is patched
// locally.
func (b *Board) Delete(ctx context.Context, id int64, confirm func(model.Lead) bool) (bool, error) {
	lead, _, found := b.Find(id)
	if !found {
		return false, fmt.Errorf("lead %d not in local cache", id)
	}
	if confirm != nil && !confirm(lead) {
		return false, nil
	}

	if err := b.client.DeleteLead(ctx, id); err != nil {
		return false, err
	}

	b.mu.Lock()
	b.removeLocked(id)
	b.stats.TotalLeads--
	b.mu.Unlock()
	return true, nil
}

// RefreshStatistics re-fetches the server aggregates.
func (b *Board) RefreshStatistics(ctx context.Context) error {
	stats, err := b.client.LeadStatistics(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.stats = stats
	b.mu.Unlock()
	return nil
}

// removeLocked drops the lead from every partition. Callers hold b.mu.
func (b *Board) removeLocked(id int64) {
	for status, list := range b.partitions {
		kept := list[:0]
		for _, lead := range list {
			if lead.ID != id {
				kept = append(kept, lead)
			}
		}
		b.partitions[status] = kept
	}
}

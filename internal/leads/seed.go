package leads

import (
	"context"
	"fmt"

	"github.com/corvandale/leadctl/internal/model"
)

// DemoLeads returns the sample pipeline used by the seed command.
func DemoLeads() []model.CreateLead {
	return []model.CreateLead{
		{
			Name:       "John Doe",
			Email:      "john.doe@example.com",
			Phone:      "+1234567890",
			LeadSource: model.SourceWebsite,
			Notes:      "Interested in our premium package",
		},
		{
			Name:       "Jane Smith",
			Email:      "jane.smith@example.com",
			Phone:      "+1234567891",
			LeadSource: model.SourceSocialMedia,
			Notes:      "Contacted via LinkedIn",
		},
		{
			Name:       "Bob Johnson",
			Email:      "bob.johnson@example.com",
			Phone:      "+1234567892",
			LeadSource: model.SourceReferral,
			Notes:      "Referred by existing customer",
		},
		{
			Name:       "Alice Brown",
			Email:      "alice.brown@example.com",
			Phone:      "+1234567893",
			LeadSource: model.SourceGoogleAds,
			Notes:      "Clicked on our Google ad",
		},
		{
			Name:       "Charlie Wilson",
			Email:      "charlie.wilson@example.com",
			Phone:      "+1234567894",
			LeadSource: model.SourceEmailMarketing,
			Notes:      "Responded to email campaign",
		},
	}
}

// Seed creates the demo leads through the board and returns how many
// were created. It stops at the first failure.
func (b *Board) Seed(ctx context.Context) (int, error) {
	for i, input := range DemoLeads() {
		if _, err := b.Create(ctx, input); err != nil {
			return i, fmt.Errorf("seed lead %q: %w", input.Name, err)
		}
	}
	return len(DemoLeads()), nil
}

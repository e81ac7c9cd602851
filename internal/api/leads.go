package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/corvandale/leadctl/internal/model"
)

// LeadsByStatus fetches the full pipeline, partitioned by status.
func (c *Client) LeadsByStatus(ctx context.Context) (model.LeadsByStatus, error) {
	var out model.LeadsByStatus
	if err := c.getWithRetry(ctx, "/leads/by-status/", &out); err != nil {
		return model.LeadsByStatus{}, err
	}
	return out, nil
}

// LeadStatistics fetches the server-computed aggregates. These are never
// derived locally from the cached leads.
func (c *Client) LeadStatistics(ctx context.Context) (model.LeadStatistics, error) {
	var out model.LeadStatistics
	if err := c.getWithRetry(ctx, "/leads/statistics/", &out); err != nil {
		return model.LeadStatistics{}, err
	}
	return out, nil
}

// Leads fetches the flat lead list.
func (c *Client) Leads(ctx context.Context) ([]model.Lead, error) {
	var out []model.Lead
	if err := c.getWithRetry(ctx, "/leads/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateLead creates a lead and returns the server's record for it.
func (c *Client) CreateLead(ctx context.Context, input model.CreateLead) (model.Lead, error) {
	var out model.Lead
	if err := c.do(ctx, http.MethodPost, "/leads/", input, &out, requestOptions{}); err != nil {
		return model.Lead{}, err
	}
	return out, nil
}

// UpdateLead patches the given fields of a lead.
func (c *Client) UpdateLead(ctx context.Context, id int64, update model.UpdateLead) (model.Lead, error) {
	var out model.Lead
	path := fmt.Sprintf("/leads/%d/", id)
	if err := c.do(ctx, http.MethodPatch, path, update, &out, requestOptions{}); err != nil {
		return model.Lead{}, err
	}
	return out, nil
}

// UpdateLeadStatus moves a lead to a new pipeline status.
func (c *Client) UpdateLeadStatus(ctx context.Context, id int64, status model.LeadStatus) (model.Lead, error) {
	return c.UpdateLead(ctx, id, model.UpdateLead{Status: &status})
}

// DeleteLead deletes a lead.
func (c *Client) DeleteLead(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/leads/%d/", id)
	return c.do(ctx, http.MethodDelete, path, nil, nil, requestOptions{})
}

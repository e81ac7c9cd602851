package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/corvandale/leadctl/internal/model"
)

func renderBoard(w io.Writer, board model.LeadsByStatus) {
	columns := []struct {
		status model.LeadStatus
		leads  []model.Lead
	}{
		{model.StatusNewLead, board.NewLead},
		{model.StatusLeadSent, board.LeadSent},
		{model.StatusDealDone, board.DealDone},
	}

	for _, col := range columns {
		fmt.Fprintf(w, "%s (%d)\n", col.status.Display(), len(col.leads))
		if len(col.leads) == 0 {
			fmt.Fprintln(w, "  (empty)")
			continue
		}
		tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
		for _, lead := range col.leads {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\n",
				lead.ID, lead.Name, lead.Email, lead.Phone, lead.LeadSource.Display())
		}
		tw.Flush()
	}
}

func renderLeadTable(w io.Writer, list []model.Lead) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No leads.")
		return
	}
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tPHONE\tSOURCE\tSTATUS\tCREATED")
	for _, lead := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			lead.ID, lead.Name, lead.Email, lead.Phone,
			lead.LeadSource.Display(), lead.Status.Display(), lead.CreatedAt)
	}
	tw.Flush()
}

func renderStatistics(w io.Writer, stats model.LeadStatistics) {
	fmt.Fprintf(w, "\nTotal: %d  New: %d  Sent: %d  Done: %d  Conversion: %.1f%%\n",
		stats.TotalLeads, stats.NewLeads, stats.LeadsSent, stats.DealsDone, stats.ConversionRate)
}

package model

type LeadStatus string

const (
	StatusNewLead  LeadStatus = "new_lead"
	StatusLeadSent LeadStatus = "lead_sent"
	StatusDealDone LeadStatus = "deal_done"
)

// Statuses lists all lead statuses in pipeline order.
func Statuses() []LeadStatus {
	return []LeadStatus{StatusNewLead, StatusLeadSent, StatusDealDone}
}

func (s LeadStatus) Valid() bool {
	switch s {
	case StatusNewLead, StatusLeadSent, StatusDealDone:
		return true
	}
	return false
}

func (s LeadStatus) Display() string {
	switch s {
	case StatusNewLead:
		return "New Lead"
	case StatusLeadSent:
		return "Lead Sent"
	case StatusDealDone:
		return "Deal Done"
	}
	return string(s)
}

// Color returns the hex color associated with the status.
func (s LeadStatus) Color() string {
	switch s {
	case StatusLeadSent:
		return "#3B82F6"
	case StatusDealDone:
		return "#10B981"
	}
	return "#6B7280"
}

type LeadSource string

const (
	SourceWebsite        LeadSource = "website"
	SourceSocialMedia    LeadSource = "social_media"
	SourceReferral       LeadSource = "referral"
	SourceColdCall       LeadSource = "cold_call"
	SourceEmailMarketing LeadSource = "email_marketing"
	SourceGoogleAds      LeadSource = "google_ads"
	SourceFacebookAds    LeadSource = "facebook_ads"
	SourceLinkedIn       LeadSource = "linkedin"
	SourceOther          LeadSource = "other"
)

func Sources() []LeadSource {
	return []LeadSource{
		SourceWebsite, SourceSocialMedia, SourceReferral, SourceColdCall,
		SourceEmailMarketing, SourceGoogleAds, SourceFacebookAds,
		SourceLinkedIn, SourceOther,
	}
}

func (s LeadSource) Valid() bool {
	for _, v := range Sources() {
		if s == v {
			return true
		}
	}
	return false
}

func (s LeadSource) Display() string {
	switch s {
	case SourceWebsite:
		return "Website"
	case SourceSocialMedia:
		return "Social Media"
	case SourceReferral:
		return "Referral"
	case SourceColdCall:
		return "Cold Call"
	case SourceEmailMarketing:
		return "Email Marketing"
	case SourceGoogleAds:
		return "Google Ads"
	case SourceFacebookAds:
		return "Facebook Ads"
	case SourceLinkedIn:
		return "LinkedIn"
	case SourceOther:
		return "Other"
	}
	return string(s)
}

type Lead struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone"`
	Email         string     `json:"email"`
	LeadSource    LeadSource `json:"lead_source"`
	SourceDisplay string     `json:"lead_source_display,omitempty"`
	Status        LeadStatus `json:"status"`
	StatusDisplay string     `json:"status_display,omitempty"`
	StatusColor   string     `json:"status_color,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CreatedBy     int64      `json:"created_by"`
	CreatedByName string     `json:"created_by_name,omitempty"`
	CreatedAt     string     `json:"created_at"`
	UpdatedAt     string     `json:"updated_at"`
}

type LeadsByStatus struct {
	NewLead  []Lead `json:"new_lead"`
	LeadSent []Lead `json:"lead_sent"`
	DealDone []Lead `json:"deal_done"`
}

type LeadStatistics struct {
	TotalLeads     int     `json:"total_leads"`
	NewLeads       int     `json:"new_leads"`
	LeadsSent      int     `json:"leads_sent"`
	DealsDone      int     `json:"deals_done"`
	ConversionRate float64 `json:"conversion_rate"`
}

type CreateLead struct {
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email"`
	LeadSource LeadSource `json:"lead_source"`
	Notes      string     `json:"notes,omitempty"`
}

// UpdateLead carries a partial update; nil fields are left untouched.
type UpdateLead struct {
	Name       *string     `json:"name,omitempty"`
	Phone      *string     `json:"phone,omitempty"`
	Email      *string     `json:"email,omitempty"`
	LeadSource *LeadSource `json:"lead_source,omitempty"`
	Status     *LeadStatus `json:"status,omitempty"`
	Notes      *string     `json:"notes,omitempty"`
}

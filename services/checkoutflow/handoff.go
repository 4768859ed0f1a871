package checkoutflow

import (
	"sync"
)

// AccessDetails is what the client sees once after a successful payment.
type AccessDetails struct {
	EngagementID string `json:"engagementId"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	LoginURL     string `json:"loginUrl,omitempty"`
}

// Handoff keeps provisioned credentials in memory until they are revealed once.
type Handoff struct {
	mu      sync.Mutex
	details *AccessDetails
}

func (h *Handoff) store(confirmation Confirmation) {
	if confirmation.credentials == nil {
		return
	}

	details := &AccessDetails{
		Email:    confirmation.credentials.Email,
		Password: confirmation.credentials.Password,
		LoginURL: confirmation.credentials.LoginURL,
	}
	if confirmation.engagement != nil {
		details.EngagementID = confirmation.engagement.ID
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.details = details
}

// Reveal returns the credentials on the first call only.
func (h *Handoff) Reveal() (AccessDetails, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.details == nil {
		return AccessDetails{}, false
	}
	details := *h.details
	h.details = nil

	return details, true
}

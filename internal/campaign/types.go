package campaign

import "strings"

// Campaign status values the client interprets. Status text is free-form on
// the wire and always compared case-insensitively.
const (
	// StatusAvailable is the just-created, never-started state. Seeing it
	// during polling means the start call did not take effect.
	StatusAvailable = "available"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// IsTerminalStatus reports whether a status string is in the terminal set.
func IsTerminalStatus(status string) bool {
	return strings.EqualFold(status, StatusCompleted) || strings.EqualFold(status, StatusError)
}

// Node is one compute node's record within a campaign.
type Node struct {
	InstanceID string `json:"instanceId,omitempty"`
	Status     string `json:"status"`
}

// Status is the polled campaign record.
type Status struct {
	CampaignID         string  `json:"campaignId,omitempty"`
	Active             bool    `json:"active"`
	Status             string  `json:"status"`
	StartTime          int64   `json:"startTime,omitempty"`
	EstimatedEndTime   int64   `json:"estimatedEndTime,omitempty"`
	HashRate           float64 `json:"hashRate,omitempty"`
	Progress           float64 `json:"progress,omitempty"`
	RecoveredHashes    int     `json:"recoveredHashes,omitempty"`
	RejectedPercentage float64 `json:"rejectedPercentage,omitempty"`
	Nodes              []Node  `json:"instances,omitempty"`
}

// AllNodesTerminal reports whether the node list is non-empty and every node
// has reached a terminal status. The backend does not always stop such a
// campaign itself; the poller compensates with an explicit cancel.
func (s *Status) AllNodesTerminal() bool {
	if s == nil || len(s.Nodes) == 0 {
		return false
	}
	for _, n := range s.Nodes {
		if !IsTerminalStatus(n.Status) {
			return false
		}
	}
	return true
}

// Order is the job-submission payload, shaped exactly as the backend expects:
// count and duration travel as strings, attack-mode keys are present only
// when that mode is enabled.
type Order struct {
	HashType         int      `json:"hashType"`
	HashFile         string   `json:"hashFile"`
	HashFileURL      string   `json:"hashFileUrl,omitempty"`
	Region           string   `json:"region"`
	AvailabilityZone string   `json:"availabilityZone"`
	PriceTarget      float64  `json:"priceTarget"`
	InstanceType     string   `json:"instanceType"`
	InstanceCount    string   `json:"instanceCount"`
	InstanceDuration string   `json:"instanceDuration"`
	Mask             string   `json:"mask,omitempty"`
	DictionaryFile   string   `json:"dictionaryFile,omitempty"`
	RulesFiles       []string `json:"rulesFiles,omitempty"`
}

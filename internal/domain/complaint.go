package domain

import (
	"fmt"
	"time"
)

// ComplaintAction is the resolution an admin picked for a reported message.
type ComplaintAction string

const (
	ActionIgnore ComplaintAction = "ignore"
	ActionMute30 ComplaintAction = "mute30"
	ActionBan    ComplaintAction = "ban"
)

// ParseComplaintAction maps a callback token to an action.
func ParseComplaintAction(s string) (ComplaintAction, bool) {
	switch ComplaintAction(s) {
	case ActionIgnore, ActionMute30, ActionBan:
		return ComplaintAction(s), true
	}
	return "", false
}

// ComplaintKey identifies one reported message about one user.
type ComplaintKey struct {
	SourceChatID    int64
	SourceMessageID int
	TargetUserID    int64
}

// String renders the key in the form used by the processed ledger.
func (k ComplaintKey) String() string {
	return fmt.Sprintf("%d:%d:%d", k.SourceChatID, k.SourceMessageID, k.TargetUserID)
}

// ProcessedComplaint records who resolved a complaint and how.
type ProcessedComplaint struct {
	Action     ComplaintAction `json:"action"`
	AdminID    int64           `json:"admin_id"`
	AdminName  string          `json:"admin_name"`
	ResolvedAt time.Time       `json:"resolved_at"`
}

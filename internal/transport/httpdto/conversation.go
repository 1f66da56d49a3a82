package httpdto

type CreateConversationRequest struct {
	Type      string   `json:"type"` // DIRECT or GROUP
	Subject   string   `json:"subject,omitempty"`
	MemberIDs []string `json:"member_ids"`
}

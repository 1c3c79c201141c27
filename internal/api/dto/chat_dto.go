package dto

// Websocket client actions.
const (
	ActionJoin            = "join"
	ActionSendMessage     = "sendMessage"
	ActionSendFileMessage = "sendFileMessage"
	ActionRequestClose    = "requestClose"
	ActionConfirmClose    = "confirmClose"
	ActionDeclineClose    = "declineClose"
)

// ClientMessage is one frame sent by a websocket client.
type ClientMessage struct {
	Action   string `json:"action"`
	TicketID string `json:"ticketId"`
	Content  string `json:"content,omitempty"`
	FileURL  string `json:"fileUrl,omitempty"`
}

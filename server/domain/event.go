package domain

type EventName string

// Outbound event names, one per transport emission.
const (
	EventPreviousMessages       EventName = "previousMessages"
	EventMessage                EventName = "message"
	EventRoomUserCount          EventName = "roomUserCount"
	EventFriendRequestSent      EventName = "friendRequestSent"
	EventNewFriendRequest       EventName = "newFriendRequest"
	EventFriendRequestResponded EventName = "friendRequestResponded"
	EventFriendRequestUpdate    EventName = "friendRequestUpdate"
	EventFriendsListUpdate      EventName = "friendsListUpdate"
	EventPendingRequests        EventName = "pendingRequests"
	EventFriendsList            EventName = "friendsList"
	EventFriendStatusUpdate     EventName = "friendStatusUpdate"
	EventFriendRemoved          EventName = "friendRemoved"
	EventSearchResults          EventName = "searchResults"
	EventError                  EventName = "error"
)

// Event is a named, JSON-serializable payload pushed to a connection.
type Event struct {
	Name EventName `json:"event"`
	Data any       `json:"data"`
}

func NewEvent(name EventName, data any) Event {
	return Event{Name: name, Data: data}
}

type RoomUserCountPayload struct {
	Room  string `json:"room"`
	Count int    `json:"count"`
}

type NewFriendRequestPayload struct {
	From      string `json:"from"`
	RequestID int64  `json:"requestId"`
	CreatedAt string `json:"createdAt"`
}

type FriendRequestUpdatePayload struct {
	RequestID int64         `json:"requestId"`
	Response  RequestStatus `json:"response"`
	From      string        `json:"from"`
}

type FriendsListUpdatePayload struct {
	Friends []Friend `json:"friends"`
}

type FriendStatusUpdatePayload struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
	Status   string `json:"status"`
}

type FriendRemovedPayload struct {
	Username string `json:"username"`
}

package models

// FriendRequest is a pending request row in the "friendRequests"
// collection. There is no accepted/rejected state: resolution deletes
// the row.
type FriendRequest struct {
	ID        string `json:"id" firestore:"-"`
	From      string `json:"from" firestore:"from"`
	FromName  string `json:"fromName" firestore:"fromName"`
	FromCode  string `json:"fromCode" firestore:"fromCode"`
	To        string `json:"to" firestore:"to"`
	ToName    string `json:"toName" firestore:"toName"`
	Status    string `json:"status" firestore:"status"`
	CreatedAt string `json:"createdAt" firestore:"createdAt"`
}

// StatusPending is the only persisted friend-request status.
const StatusPending = "pending"

// Friend is one hydrated entry of the friends list. Missing marks a uid
// that is present in the friend set but whose profile row no longer
// exists.
type Friend struct {
	User
	Missing bool `json:"missing,omitempty"`
}

// SendFriendRequestBody defines the request body for sending a friend request
type SendFriendRequestBody struct {
	Code string `json:"code" validate:"required,len=4,numeric"`
}

// AcceptFriendRequestBody defines the request body for accepting a friend request
type AcceptFriendRequestBody struct {
	FromUID string `json:"fromUid" validate:"required"`
}

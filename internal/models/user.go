package models

import (
	"math/rand"
	"time"
)

// User is a profile row in the "users" collection. The uid is the
// backend-assigned anonymous session id and the document key; the code is
// a 4-digit secondary key enforced by collision-checked generation.
type User struct {
	UID    string `json:"uid" firestore:"-"`
	Name   string `json:"name" firestore:"name"`
	Code   string `json:"code" firestore:"code"`
	IconID int    `json:"iconId" firestore:"iconId"`
}

// SignInRequest defines the request body for signing in
type SignInRequest struct {
	Name string `json:"name" validate:"required,max=20"`
}

// UpdateProfileRequest defines the request body for updating the profile
type UpdateProfileRequest struct {
	Name   string `json:"name" validate:"required,max=20"`
	IconID int    `json:"iconId" validate:"required,min=1,max=10"`
}

// IconCount is the number of profile icons the UI ships with.
const IconCount = 10

// RandomIconID picks an icon for a new user.
func RandomIconID() int {
	return rand.Intn(IconCount) + 1
}

// timestampLayout is fixed-width so that lexicographic order on stored
// createdAt strings equals chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Timestamp returns the client-side ordering key for new documents.
func Timestamp() string {
	return time.Now().UTC().Format(timestampLayout)
}

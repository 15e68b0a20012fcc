package studenthub

import "github.com/google/uuid"

func newTokenID() string {
	return uuid.NewString()
}

func newVerifyToken() string {
	return uuid.NewString()
}

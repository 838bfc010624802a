package authkit

import "github.com/google/uuid"

func newRowID() string {
	return uuid.NewString()
}

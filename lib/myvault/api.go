package myvault

import (
	"context"
	"time"

	"github.com/MarcGrol/consultcheckout/lib/mystore"
)

// Account holds the login of a client portal user. Only the password hash is ever stored.
type Account struct {
	Email              string
	EngagementID       string
	PasswordHash       string `datastore:",noindex"`
	MustChangePassword bool
	CreatedAt          time.Time
}

type Vault interface {
	Put(c context.Context, uid string, value Account) error
	Get(c context.Context, uid string) (Account, bool, error)
}

func New(c context.Context) (Vault, func(), error) {
	return mystore.New[Account](c)
}

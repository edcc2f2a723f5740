package login

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"user-profile/internal/domain"
)

// ErrLogin wraps any failure raised while logging a user in.
var ErrLogin = errors.New("error logging in")

const defaultDisplayName = "Jane Doe"

// DataSource handles authentication with login credentials and hands out
// the logged in identity. Credentials are not checked. The zero value is
// ready to use.
type DataSource struct {
	newID func() (uuid.UUID, error)
}

func NewDataSource() *DataSource {
	return &DataSource{newID: uuid.NewRandom}
}

// Login always succeeds with a freshly generated identity.
func (d *DataSource) Login(_, _ string) (*domain.LoggedInUser, error) {
	newID := d.newID
	if newID == nil {
		newID = uuid.NewRandom
	}

	id, err := newID()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLogin, err)
	}
	return &domain.LoggedInUser{
		UserID:      id.String(),
		DisplayName: defaultDisplayName,
	}, nil
}

// Logout does nothing; there is no session to revoke.
func (d *DataSource) Logout() {}

package orders

import (
	"context"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // batas input bcrypt
)

// AccountService: registrasi dan login. Token diterbitkan di layer HTTP.
type AccountService struct {
	Stores Stores
	Log    log.FieldLogger
	Cost   int // bcrypt cost, 0 = bcrypt.DefaultCost
}

func NewAccountService(stores Stores, logger log.FieldLogger) *AccountService {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &AccountService{Stores: stores, Log: logger, Cost: bcrypt.DefaultCost}
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalidInput("invalid email")
	}
	return email, nil
}

// Register creates a USER account.
func (s *AccountService) Register(ctx context.Context, r Registration) (*User, error) {
	return s.create(ctx, r, RoleUser)
}

// CreateAdmin dipakai oleh perintah CLI create-admin.
func (s *AccountService) CreateAdmin(ctx context.Context, r Registration) (*User, error) {
	return s.create(ctx, r, RoleAdmin)
}

func (s *AccountService) create(ctx context.Context, r Registration, role Role) (*User, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return nil, invalidInput("name is required")
	}
	email, err := normalizeEmail(r.Email)
	if err != nil {
		return nil, err
	}
	if n := len(r.Password); n < minPasswordLen || n > maxPasswordLen {
		return nil, invalidInput("password must be 8 to 72 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.cost())
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	id, err := s.Stores.Users.InsertUser(ctx, NewUser{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Phone:        strings.TrimSpace(r.Phone),
		Address:      strings.TrimSpace(r.Address),
		Role:         role,
	})
	if err != nil {
		if KindOf(err) != "" {
			return nil, err
		}
		return nil, errors.Wrap(err, "insert user")
	}
	s.Log.WithFields(log.Fields{"user_id": id, "role": role}).Info("user registered")
	return s.Stores.Users.GetUser(ctx, id)
}

// Authenticate checks the password. Unknown email and wrong password return
// the same ErrBadCredentials. requireAdmin rejects non-admins with ErrForbidden.
func (s *AccountService) Authenticate(ctx context.Context, email, password string, requireAdmin bool) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.Stores.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, errors.Wrap(err, "load user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.Log.WithField("user_id", u.ID).Warn("login failed")
		return nil, ErrBadCredentials
	}
	if requireAdmin && !u.Principal().IsAdmin() {
		return nil, &Error{Kind: KindForbidden, Msg: "admin access required"}
	}
	return u, nil
}

func (s *AccountService) Me(ctx context.Context, p Principal) (*User, error) {
	return s.Stores.Users.GetUser(ctx, p.UserID)
}

func (s *AccountService) cost() int {
	if s.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return s.Cost
}

package domain

import "github.com/google/uuid"

// UserStatus is the lifecycle state of a CMS user account
type UserStatus string

const (
	UserDraft      UserStatus = "draft"
	UserInvited    UserStatus = "invited"
	UserUnverified UserStatus = "unverified"
	UserActive     UserStatus = "active"
	UserSuspended  UserStatus = "suspended"
	UserArchived   UserStatus = "archived"
)

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	switch s {
	case UserDraft, UserInvited, UserUnverified, UserActive, UserSuspended, UserArchived:
		return true
	}
	return false
}

// User field names
const (
	UserFieldEmail       = "email"
	UserFieldPassword    = "password"
	UserFieldFirstName   = "first_name"
	UserFieldLastName    = "last_name"
	UserFieldDescription = "description"
	UserFieldRole        = "role"
	UserFieldAvatar      = "avatar"
	UserFieldStatus      = "status"
)

// User is a record from the directus_users collection.
type User struct {
	*Record
}

// UserFromRecord wraps an existing record.
func UserFromRecord(r *Record) *User { return &User{Record: r} }

// NewUser builds an unsaved user with a fresh id. Empty optional values are left out.
func NewUser(email, password, firstName, lastName, role string) *User {
	raw := NewFields()
	raw.Set(IDField, StringValue(uuid.NewString()))
	raw.Set(UserFieldEmail, StringValue(email))
	raw.Set(UserFieldPassword, StringValue(password))
	for key, v := range map[string]string{
		UserFieldFirstName: firstName,
		UserFieldLastName:  lastName,
		UserFieldRole:      role,
	} {
		if v != "" {
			raw.Set(key, StringValue(v))
		}
	}
	return &User{Record: &Record{raw: raw, pending: NewFields()}}
}

func (u *User) Email() string       { s, _ := u.OptionalString(UserFieldEmail); return s }
func (u *User) FirstName() string   { s, _ := u.OptionalString(UserFieldFirstName); return s }
func (u *User) LastName() string    { s, _ := u.OptionalString(UserFieldLastName); return s }
func (u *User) Description() string { s, _ := u.OptionalString(UserFieldDescription); return s }
func (u *User) Role() string        { s, _ := u.OptionalString(UserFieldRole); return s }
func (u *User) Avatar() string      { s, _ := u.OptionalString(UserFieldAvatar); return s }

func (u *User) SetEmail(s string)       { u.SetString(UserFieldEmail, s) }
func (u *User) SetPassword(s string)    { u.SetString(UserFieldPassword, s) }
func (u *User) SetFirstName(s string)   { u.SetString(UserFieldFirstName, s) }
func (u *User) SetLastName(s string)    { u.SetString(UserFieldLastName, s) }
func (u *User) SetDescription(s string) { u.SetString(UserFieldDescription, s) }
func (u *User) SetRole(s string)        { u.SetString(UserFieldRole, s) }

// Status returns the account status, or false when it is unset or unknown.
func (u *User) Status() (UserStatus, bool) {
	s, ok := u.OptionalString(UserFieldStatus)
	if !ok || !UserStatus(s).Valid() {
		return "", false
	}
	return UserStatus(s), true
}

func (u *User) SetStatus(s UserStatus) { u.SetString(UserFieldStatus, string(s)) }

// FullName joins first and last name, skipping whichever is empty.
func (u *User) FullName() string {
	first, last := u.FirstName(), u.LastName()
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

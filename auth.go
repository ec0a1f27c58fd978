package main

import (
	"errors"
	"fmt"
	"time"

	bcrypt "golang.org/x/crypto/bcrypt"
)

const (
	keyUsers       = "users"
	keyCurrentUser = "currentUser"
)

// Ledger owns the user collection and the single current session.
type Ledger struct {
	store       *KVStore
	bcryptCost  int
	currentUser *User
}

// NewLedger restores the session persisted by a previous run, if any.
func NewLedger(store *KVStore, bcryptCost int) (*Ledger, error) {
	l := &Ledger{store: store, bcryptCost: bcryptCost}
	var u User
	err := store.Get(keyCurrentUser, &u)
	switch {
	case err == nil:
		l.currentUser = &u
	case errors.Is(err, ErrKeyNotFound):
	default:
		return nil, err
	}
	return l, nil
}

func HashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

func HashToPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func (l *Ledger) Users() ([]User, error) {
	return GetOrDefault(l.store, keyUsers, []User{})
}

func (l *Ledger) Register(req RegisterRequest) (User, error) {
	users, err := l.Users()
	if err != nil {
		return User{}, err
	}
	for _, u := range users {
		if u.Email == req.Email {
			return User{}, ErrDuplicateEmail
		}
	}
	hash, err := HashPassword(req.Password, l.bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		ID:        nextID(users, func(u User) int { return u.ID }),
		Email:     req.Email,
		Password:  hash,
		Name:      req.Name,
		Phone:     req.Phone,
		Address:   req.Address,
		Role:      RoleUser,
		CreatedAt: time.Now(),
	}
	if err := l.store.Set(keyUsers, append(users, u)); err != nil {
		return User{}, err
	}
	return publicUser(u), nil
}

// Login succeeds only when exactly one stored user matches both email and password.
func (l *Ledger) Login(email, password string) (User, error) {
	users, err := l.Users()
	if err != nil {
		return User{}, err
	}
	var match *User
	for i := range users {
		if users[i].Email != email || !HashToPassword(users[i].Password, password) {
			continue
		}
		if match != nil {
			return User{}, ErrInvalidCredentials
		}
		match = &users[i]
	}
	if match == nil {
		return User{}, ErrInvalidCredentials
	}
	session := publicUser(*match)
	if err := l.store.Set(keyCurrentUser, session); err != nil {
		return User{}, err
	}
	l.currentUser = &session
	return session, nil
}

func (l *Ledger) Logout() error {
	l.currentUser = nil
	return l.store.Remove(keyCurrentUser)
}

func (l *Ledger) CurrentUser() (User, bool) {
	if l.currentUser == nil {
		return User{}, false
	}
	return *l.currentUser, true
}

func (l *Ledger) IsLoggedIn() bool {
	return l.currentUser != nil
}

func (l *Ledger) IsAdmin() bool {
	return l.currentUser != nil && l.currentUser.Role == RoleAdmin
}

// UpdateProfile patches the logged-in user and replaces the session snapshot
// in the same call so both stay consistent.
func (l *Ledger) UpdateProfile(patch UserPatch) (User, error) {
	if l.currentUser == nil {
		return User{}, ErrNotLoggedIn
	}
	users, err := l.Users()
	if err != nil {
		return User{}, err
	}
	idx := -1
	for i, u := range users {
		if u.ID == l.currentUser.ID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return User{}, fmt.Errorf("user %d: %w", l.currentUser.ID, ErrNotFound)
	}
	u := users[idx]
	if patch.Email != nil && *patch.Email != u.Email {
		for _, other := range users {
			if other.Email == *patch.Email {
				return User{}, ErrDuplicateEmail
			}
		}
		u.Email = *patch.Email
	}
	if patch.Password != nil {
		hash, err := HashPassword(*patch.Password, l.bcryptCost)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		u.Password = hash
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Phone != nil {
		u.Phone = *patch.Phone
	}
	if patch.Address != nil {
		u.Address = *patch.Address
	}
	prev := users[idx]
	users[idx] = u
	if err := l.store.Set(keyUsers, users); err != nil {
		return User{}, err
	}
	session := publicUser(u)
	if err := l.store.Set(keyCurrentUser, session); err != nil {
		users[idx] = prev
		if rbErr := l.store.Set(keyUsers, users); rbErr != nil {
			return User{}, fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return User{}, err
	}
	l.currentUser = &session
	return session, nil
}

// DeleteUser is idempotent.
func (l *Ledger) DeleteUser(id int) error {
	users, err := l.Users()
	if err != nil {
		return err
	}
	kept := make([]User, 0, len(users))
	for _, u := range users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	return l.store.Set(keyUsers, kept)
}

// publicUser strips the password hash before a user leaves the ledger.
func publicUser(u User) User {
	u.Password = ""
	return u
}

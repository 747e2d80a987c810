// Package store keeps registered user accounts. The room core never
// consults it; it only backs the register/login HTTP routes.
package store

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountExists      = errors.New("account already exists")
)

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type record struct {
	user         User
	passwordHash string
}

// Users is an in-memory account store keyed by lowercase email.
type Users struct {
	mu      sync.Mutex
	byEmail map[string]*record
	tokens  map[string]string // token -> user id
	nextID  int
}

func NewUsers() *Users {
	return &Users{
		byEmail: make(map[string]*record),
		tokens:  make(map[string]string),
	}
}

func (s *Users) Register(name, email, password string) (string, User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || len(password) < 6 {
		return "", User{}, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return "", User{}, ErrAccountExists
	}
	s.nextID++
	rec := &record{
		user: User{
			ID:        newID(s.nextID),
			Name:      name,
			Email:     email,
			CreatedAt: time.Now(),
		},
		passwordHash: string(hash),
	}
	s.byEmail[email] = rec

	token, err := newToken()
	if err != nil {
		return "", User{}, err
	}
	s.tokens[token] = rec.user.ID
	return token, rec.user, nil
}

func (s *Users) Login(email, password string) (string, User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", User{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byEmail[email]
	if !ok {
		return "", User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.passwordHash), []byte(password)) != nil {
		return "", User{}, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return "", User{}, err
	}
	s.tokens[token] = rec.user.ID
	return token, rec.user, nil
}

func newID(n int) string {
	return "u_" + strconv.Itoa(n)
}

func newToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return "t_" + hex.EncodeToString(b[:]), nil
}

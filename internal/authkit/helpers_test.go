package authkit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// fixedClock reports a configurable instant so token timestamps are exact.
type fixedClock struct {
	mutex   sync.Mutex
	current time.Time
}

func newFixedClock(current time.Time) *fixedClock {
	return &fixedClock{current: current}
}

func (clock *fixedClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.current
}

func (clock *fixedClock) Advance(delta time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.current = clock.current.Add(delta)
}

func testServerConfig() ServerConfig {
	return ServerConfig{
		JWTSigningKey:   []byte("unit-test-signing-key-0123456789"),
		JWTIssuer:       "shoply-test",
		JWTAudience:     "shoply-clients",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		BaseURL:         "https://shop.example.com",
	}
}

type purposeTokenEntry struct {
	purpose  TokenPurpose
	userID   string
	consumed bool
}

// fakeIdentity is an in-memory IdentityProvider for orchestrator tests.
type fakeIdentity struct {
	mutex         sync.Mutex
	usersByID     map[string]User
	passwordsByID map[string]string
	rolesByID     map[string][]string
	purposeTokens map[string]*purposeTokenEntry
	nextID        int

	createUserErr    error
	checkPasswordErr error
	getRolesErr      error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		usersByID:     make(map[string]User),
		passwordsByID: make(map[string]string),
		rolesByID:     make(map[string][]string),
		purposeTokens: make(map[string]*purposeTokenEntry),
	}
}

func (identity *fakeIdentity) addUser(email string, userName string, password string, roles []string) User {
	user, createErr := identity.CreateUser(context.Background(), NewUser{
		Email:    email,
		UserName: userName,
		Password: password,
		Roles:    roles,
	})
	if createErr != nil {
		panic(createErr)
	}
	return user
}

func (identity *fakeIdentity) FindByID(_ context.Context, userID string) (User, error) {
	identity.mutex.Lock()
	defer identity.mutex.Unlock()
	user, exists := identity.usersByID[userID]
	if !exists {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (identity *fakeIdentity) FindByEmail(_ context.Context, email string) (User, error) {
	identity.mutex.Lock()
	defer identity.mutex.Unlock()
	for _, user := range identity.usersByID {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (identity *fakeIdentity) CreateUser(_ context.Context, newUser NewUser) (User, error) {
	identity.mutex.Lock()
	defer identity.mutex.Unlock()
	if identity.createUserErr != nil {
		return User{}, identity.createUserErr
	}
	identity.nextID++
	user := User{
		ID:       fmt.Sprintf("user-%d", identity.nextID),
		Email:    newUser.Email,
		UserName: newUser.UserName,
	}
	identity.usersByID[user.ID] = user
	identity.passwordsByID[user.ID] = newUser.Password
	identity.rolesByID[user.ID] = append([]string(nil), newUser.Roles...)
	return user, nil
}

func (identity *fakeIdentity) CheckPassword(_ context.Context, user User, password string) (bool, error) {
	identity.mutex.Lock()
	defer identity.mutex.Unlock()
	if identity.checkPasswordErr != nil {
		return false, identity.checkPasswordErr
	}
	stored, exists := identity.passwordsByID[user.ID]
	return exists && stored == password, nil
}

func (identity *fakeIdentity) GetRoles(_ context.Context, user User) ([]string, error) {
	identity.mutex.Lock()
	defer identity.mutex.Unlock()
	if identity.getRolesErr != nil {
		return nil, identity.getRolesErr
	}
	return append([]string(nil), identity.rolesByID[user.ID]...), nil
}

func (identity *fakeIdentity) SetPassword(_ context.Context, user User, newPassword string) error {
	identity.mutex.Lock()
	defer identity.mutex.Unlock()
	if _, exists := identity.usersByID[user.ID]; !exists {
		return ErrUserNotFound
	}
	identity.passwordsByID[user.ID] = newPassword
	return nil
}

func (identity *fakeIdentity) MarkEmailConfirmed(_ context.Context, user User) error {
	identity.mutex.Lock()
	defer identity.mutex.Unlock()
	stored, exists := identity.usersByID[user.ID]
	if !exists {
		return ErrUserNotFound
	}
	stored.EmailConfirmed = true
	identity.usersByID[user.ID] = stored
	return nil
}

func (identity *fakeIdentity) GeneratePurposeToken(_ context.Context, purpose TokenPurpose, user User) (string, error) {
	identity.mutex.Lock()
	defer identity.mutex.Unlock()
	token := fmt.Sprintf("%s-token-%s-%d", purpose, user.ID, len(identity.purposeTokens))
	identity.purposeTokens[token] = &purposeTokenEntry{purpose: purpose, userID: user.ID}
	return token, nil
}

func (identity *fakeIdentity) ConfirmPurposeToken(_ context.Context, purpose TokenPurpose, user User, token string) error {
	identity.mutex.Lock()
	defer identity.mutex.Unlock()
	entry, exists := identity.purposeTokens[token]
	if !exists || entry.purpose != purpose || entry.userID != user.ID || entry.consumed {
		return ErrPurposeTokenInvalid
	}
	entry.consumed = true
	return nil
}

type sentMail struct {
	to      string
	subject string
	body    string
}

// recordingMailer captures outgoing mail; failNext makes the next send fail.
type recordingMailer struct {
	mutex    sync.Mutex
	sent     []sentMail
	failNext bool
}

func (mailer *recordingMailer) Send(_ context.Context, to string, subject string, body string) error {
	mailer.mutex.Lock()
	defer mailer.mutex.Unlock()
	if mailer.failNext {
		mailer.failNext = false
		return fmt.Errorf("smtp unavailable")
	}
	mailer.sent = append(mailer.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (mailer *recordingMailer) sentCount() int {
	mailer.mutex.Lock()
	defer mailer.mutex.Unlock()
	return len(mailer.sent)
}

func (mailer *recordingMailer) lastSent() sentMail {
	mailer.mutex.Lock()
	defer mailer.mutex.Unlock()
	if len(mailer.sent) == 0 {
		return sentMail{}
	}
	return mailer.sent[len(mailer.sent)-1]
}

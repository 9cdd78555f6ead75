package accounts_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type testLogger struct{}

func (testLogger) Debug(format string, args ...any) {}
func (testLogger) Info(format string, args ...any)  {}
func (testLogger) Warn(format string, args ...any)  {}
func (testLogger) Error(format string, args ...any) {}

// capturingSink records every activity event for later inspection.
type capturingSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (s *capturingSink) Record(ctx context.Context, event accounts.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *capturingSink) byType(eventType accounts.ActivityEventType) []accounts.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []accounts.ActivityEvent
	for _, event := range s.events {
		if event.EventType == eventType {
			out = append(out, event)
		}
	}
	return out
}

type sentMail struct {
	To       string
	Subject  string
	Template string
	Binding  map[string]any
}

// recordingMailer captures outbound template mail instead of rendering it.
type recordingMailer struct {
	mu   sync.Mutex
	fail error
	sent []sentMail
}

func (m *recordingMailer) SendTemplate(ctx context.Context, to, subject, template string, binding map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return m.fail
	}

	m.sent = append(m.sent, sentMail{
		To:       to,
		Subject:  subject,
		Template: template,
		Binding:  binding,
	})
	return nil
}

func (m *recordingMailer) sentTo(to string) []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []sentMail
	for _, mail := range m.sent {
		if mail.To == to {
			out = append(out, mail)
		}
	}
	return out
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, accounts.CreateSchema(context.Background(), db))

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func newTestRepo(t *testing.T) accounts.RepositoryManager {
	t.Helper()
	return accounts.NewRepositoryManager(newTestDB(t))
}

// seedUser inserts an account directly, with a fake password hash since most
// flows never compare it.
func seedUser(t *testing.T, repo accounts.RepositoryManager, user *accounts.User) *accounts.User {
	t.Helper()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.PasswordHash == "" {
		user.PasswordHash = "$2a$14$not-a-real-hash"
	}

	created, err := repo.Users().Register(context.Background(), user)
	require.NoError(t, err)
	return created
}

func seedConfirmation(t *testing.T, repo accounts.RepositoryManager, user *accounts.User, expiry time.Duration) *accounts.EmailConfirmation {
	t.Helper()

	confirmation, err := repo.Confirmations().Create(context.Background(), accounts.NewEmailConfirmation(user, expiry))
	require.NoError(t, err)
	return confirmation
}

package river_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	goriver "github.com/riverqueue/river"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	riveradapter "github.com/neomorfeo/schoolhub/internal/adapter/river"
	"github.com/neomorfeo/schoolhub/internal/app"
	"github.com/neomorfeo/schoolhub/internal/domain"
)

// --- Fakes ---

type fakeMailer struct {
	mu   sync.Mutex
	sent []domain.MailMessage
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg domain.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) Sent() []domain.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MailMessage(nil), m.sent...)
}

type fakeSweeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *fakeSweeper) Sweep(_ context.Context, olderThan time.Duration) (app.SweepReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, olderThan)
	return app.SweepReport{Scanned: 1, Reaped: 1}, nil
}

// --- Setup ---

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := t.TempDir() + "/river_test.db"
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		t.Fatalf("setting WAL: %v", err)
	}

	return db
}

// startClient sets up and starts a client, subscribed to job completions.
func startClient(t *testing.T, deps riveradapter.Deps) (*riveradapter.Client, <-chan *goriver.Event) {
	t.Helper()
	ctx := context.Background()

	client, err := riveradapter.Setup(ctx, setupTestDB(t), deps)
	if err != nil {
		t.Fatalf("river setup: %v", err)
	}

	// Subscribe before starting so we don't miss events.
	events, cancel := client.Subscribe(goriver.EventKindJobCompleted)
	t.Cleanup(cancel)

	if err := client.Start(ctx); err != nil {
		t.Fatalf("river start: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Stop(stopCtx); err != nil {
			t.Errorf("river stop: %v", err)
		}
	})

	return client, events
}

func waitForJob(t *testing.T, events <-chan *goriver.Event, kind string) *goriver.Event {
	t.Helper()
	for {
		select {
		case event := <-events:
			if event.Job.Kind == kind {
				return event
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s job", kind)
			return nil
		}
	}
}

// --- Tests ---

func TestSetup_RequiresMailer(t *testing.T) {
	if _, err := riveradapter.Setup(context.Background(), setupTestDB(t), riveradapter.Deps{}); err == nil {
		t.Fatal("expected error without mailer")
	}
}

func TestNotifier_SendsWelcomeMail(t *testing.T) {
	mailer := &fakeMailer{}
	client, events := startClient(t, riveradapter.Deps{
		Mailer:     mailer,
		AppName:    "SchoolHub",
		BaseDomain: "schoolhub.test",
		Logger:     zap.NewNop(),
	})

	err := riveradapter.NewNotifier(client).ConversionCompleted(context.Background(), domain.ConversionCompletedEvent{
		ConversionID: "c-1",
		AdminID:      "a-1",
		AdminName:    "Ada",
		AdminEmail:   "ada@x.com",
		TenantID:     "t-1",
		TenantDomain: "oak-school",
		SchoolName:   "Oak School",
	})
	if err != nil {
		t.Fatalf("ConversionCompleted failed: %v", err)
	}

	event := waitForJob(t, events, "conversion.completed")
	for _, want := range []string{`"conversion_id":"c-1"`, `"tenant_domain":"oak-school"`, `"admin_email":"ada@x.com"`} {
		if !strings.Contains(string(event.Job.EncodedArgs), want) {
			t.Errorf("encoded args missing %s, got: %s", want, event.Job.EncodedArgs)
		}
	}

	sent := mailer.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(sent))
	}
	if sent[0].ToEmail != "ada@x.com" {
		t.Errorf("ToEmail = %q, want %q", sent[0].ToEmail, "ada@x.com")
	}
	if sent[0].Subject != "Oak School is ready on SchoolHub" {
		t.Errorf("Subject = %q", sent[0].Subject)
	}
	if !strings.Contains(sent[0].Text, "https://oak-school.schoolhub.test") {
		t.Errorf("Text missing tenant url: %q", sent[0].Text)
	}
}

func TestNotifier_MailFailureIsRetried(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	client, _ := startClient(t, riveradapter.Deps{Mailer: mailer})

	failed, cancel := client.Subscribe(goriver.EventKindJobFailed)
	defer cancel()

	err := riveradapter.NewNotifier(client).ConversionCompleted(context.Background(), domain.ConversionCompletedEvent{
		ConversionID: "c-2",
		AdminEmail:   "b@x.com",
		TenantDomain: "elm",
	})
	if err != nil {
		t.Fatalf("ConversionCompleted failed: %v", err)
	}

	select {
	case event := <-failed:
		if event.Job.Attempt != 1 {
			t.Errorf("attempt = %d, want 1", event.Job.Attempt)
		}
		if event.Job.MaxAttempts != 5 {
			t.Errorf("max attempts = %d, want 5", event.Job.MaxAttempts)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for failed job")
	}
}

func TestOrphanSweepWorker_RunsSweep(t *testing.T) {
	sweeper := &fakeSweeper{}
	client, events := startClient(t, riveradapter.Deps{
		Mailer:    &fakeMailer{},
		Sweeper:   sweeper,
		OrphanTTL: 6 * time.Hour,
	})

	if _, err := client.Insert(context.Background(), riveradapter.OrphanSweepArgs{}, nil); err != nil {
		t.Fatalf("inserting sweep job: %v", err)
	}

	waitForJob(t, events, "tenant.orphan_sweep")

	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()
	if len(sweeper.calls) != 1 || sweeper.calls[0] != 6*time.Hour {
		t.Errorf("sweep calls = %v, want [6h]", sweeper.calls)
	}
}

package app_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/adapter/fsm"
	"github.com/neomorfeo/schoolhub/internal/adapter/sqlite"
	"github.com/neomorfeo/schoolhub/internal/adapter/tenantdb"
	"github.com/neomorfeo/schoolhub/internal/app"
	"github.com/neomorfeo/schoolhub/internal/domain"
	"github.com/neomorfeo/schoolhub/internal/security"
)

var baseTime = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

const testPassword = "correct horse battery"

// --- Fakes ---

// fakeClock advances by one millisecond on every read.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.ConversionCompletedEvent
	err    error
}

func (n *recordingNotifier) ConversionCompleted(_ context.Context, e domain.ConversionCompletedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func (n *recordingNotifier) Events() []domain.ConversionCompletedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.ConversionCompletedEvent(nil), n.events...)
}

// faultyDatabases wraps a real database admin and injects failures.
type faultyDatabases struct {
	domain.TenantDatabaseAdmin

	migrateErr    error
	failConnectAt int32 // 1-based Connect call to fail, 0 disables
	connects      atomic.Int32
}

func (f *faultyDatabases) MigrateDatabase(ctx context.Context, name string) error {
	if f.migrateErr != nil {
		return f.migrateErr
	}
	return f.TenantDatabaseAdmin.MigrateDatabase(ctx, name)
}

func (f *faultyDatabases) Connect(ctx context.Context, name string) (domain.TenantDirectory, error) {
	n := f.connects.Add(1)
	if f.failConnectAt != 0 && n == f.failConnectAt {
		return nil, errors.New("tenant database unreachable")
	}
	return f.TenantDatabaseAdmin.Connect(ctx, name)
}

type observed struct {
	status domain.ConversionStatus
	code   string
}

type recordingObserver struct {
	mu        sync.Mutex
	finished  []observed
	rollbacks []bool
	reaped    int
}

func (o *recordingObserver) ConversionFinished(_ context.Context, status domain.ConversionStatus, code string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, observed{status: status, code: code})
}

func (o *recordingObserver) RollbackFinished(_ context.Context, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rollbacks = append(o.rollbacks, ok)
}

func (o *recordingObserver) OrphansReaped(_ context.Context, count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reaped += count
}

// --- Harness ---

type harness struct {
	store       *sqlite.Store
	tenantDBs   *tenantdb.SQLiteAdmin
	dbs         *faultyDatabases
	clock       *fakeClock
	notifier    *recordingNotifier
	observer    *recordingObserver
	locker      *app.KeyedLocker
	hasher      security.BcryptHasher
	conversions *app.ConversionService
	admins      *app.AdminService
	sweeper     *app.OrphanSweeper
}

func newHarness(t *testing.T, opts ...app.ConversionOption) *harness {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	store, err := sqlite.Open(ctx, filepath.Join(dir, "central.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tenantDBs, err := tenantdb.NewSQLiteAdmin(filepath.Join(dir, "tenants"), zap.NewNop())
	require.NoError(t, err)

	h := &harness{
		store:     store,
		tenantDBs: tenantDBs,
		dbs:       &faultyDatabases{TenantDatabaseAdmin: tenantDBs},
		clock:     &fakeClock{now: baseTime},
		notifier:  &recordingNotifier{},
		observer:  &recordingObserver{},
		locker:    app.NewKeyedLocker(),
		hasher:    security.BcryptHasher{Cost: 4},
	}
	h.conversions = h.conversionService(store.Ledger(), opts...)
	h.admins = app.NewAdminService(store.Admins(), store, h.hasher, fsm.New(), h.locker, h.clock, zap.NewNop())
	h.sweeper = app.NewOrphanSweeper(store.Tenants(), h.dbs, h.clock, h.observer, zap.NewNop())
	return h
}

// conversionService builds a ConversionService over the harness with the
// given ledger.
func (h *harness) conversionService(ledger domain.ConversionLedger, opts ...app.ConversionOption) *app.ConversionService {
	return app.NewConversionService(app.ConversionDeps{
		Admins:    h.store.Admins(),
		Tenants:   h.store.Tenants(),
		Ledger:    ledger,
		Tx:        h.store,
		Databases: h.dbs,
		Validator: fsm.New(),
		Notifier:  h.notifier,
		Locker:    h.locker,
		Clock:     h.clock,
		Observer:  h.observer,
		Logger:    zap.NewNop(),
	}, opts...)
}

// newAdmin provisions an admin through AdminService and sets its status.
func (h *harness) newAdmin(t *testing.T, name, email string, status domain.AdminStatus) domain.Admin {
	t.Helper()
	ctx := context.Background()

	admin, err := h.admins.ProvisionAdmin(ctx, app.NewAdminInput{Name: name, Email: email, Password: testPassword})
	require.NoError(t, err)

	if status != domain.AdminPending {
		admin.Status = status
		require.NoError(t, h.store.Admins().Update(ctx, admin))
	}
	return admin
}

func (h *harness) admin(t *testing.T, id string) domain.Admin {
	t.Helper()
	admin, err := h.store.Admins().GetByID(context.Background(), id)
	require.NoError(t, err)
	return admin
}

func (h *harness) records(t *testing.T, adminID string) []domain.ConversionRecord {
	t.Helper()
	records, err := h.store.Ledger().ListFor(context.Background(), adminID)
	require.NoError(t, err)
	return records
}

func (h *harness) directory(t *testing.T, database string) domain.TenantDirectory {
	t.Helper()
	dir, err := h.tenantDBs.Connect(context.Background(), database)
	require.NoError(t, err)
	t.Cleanup(func() { dir.Close() })
	return dir
}

func oakSchool() domain.SchoolData {
	return domain.SchoolData{Name: "Oak School", Email: "oak@x.com"}
}

func countStatus(records []domain.ConversionRecord, status domain.ConversionStatus) int {
	n := 0
	for _, r := range records {
		if r.Status == status {
			n++
		}
	}
	return n
}

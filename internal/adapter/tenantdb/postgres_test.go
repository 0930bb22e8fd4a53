package tenantdb_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/adapter/tenantdb"
	"github.com/neomorfeo/schoolhub/internal/domain"
)

// postgresURL returns TEST_DATABASE_URL or starts a throwaway container.
func postgresURL(t *testing.T) string {
	t.Helper()

	if url, ok := os.LookupEnv("TEST_DATABASE_URL"); ok && strings.TrimSpace(url) != "" {
		return url
	}
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("schoolhub"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	url, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return url
}

func TestPostgresAdmin_Lifecycle(t *testing.T) {
	ctx := context.Background()

	admin, err := tenantdb.NewPostgresAdmin(ctx, postgresURL(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(admin.Close)

	name := "school_pg_lifecycle"
	t.Cleanup(func() { _ = admin.DropDatabase(context.Background(), name) })

	require.NoError(t, admin.CreateDatabase(ctx, name))
	require.NoError(t, admin.CreateDatabase(ctx, name), "create must be idempotent")
	require.NoError(t, admin.MigrateDatabase(ctx, name))
	require.NoError(t, admin.MigrateDatabase(ctx, name), "migrate must be idempotent")

	dir, err := admin.Connect(ctx, name)
	require.NoError(t, err)

	require.NoError(t, dir.EnsureRoles(ctx, domain.DefaultRoles))
	require.NoError(t, dir.EnsurePermissions(ctx, domain.DefaultPermissions))
	require.NoError(t, dir.GrantAllPermissions(ctx, domain.RoleAdmin))
	require.NoError(t, dir.GrantAllPermissions(ctx, domain.RoleAdmin))

	perms, err := dir.RolePermissions(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, perms, len(domain.DefaultPermissions))

	owner := domain.NewOwnerIdentity(domain.Admin{
		ID: "a-1", Name: "A", Email: "a@x.com", PasswordHash: "$2a$10$exacthash",
	}, time.Now().UTC())
	created, err := dir.CreateUser(ctx, owner)
	require.NoError(t, err)

	_, err = dir.CreateUser(ctx, owner)
	require.ErrorIs(t, err, domain.ErrEmailTaken)

	require.NoError(t, dir.AssignRole(ctx, created.ID, domain.RoleAdmin))
	roles, err := dir.UserRoles(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, []string{domain.RoleAdmin}, roles)

	got, err := dir.FindUserByEmail(ctx, "A@x.com")
	require.NoError(t, err)
	require.Equal(t, owner.PasswordHash, got.PasswordHash)
	require.True(t, got.IsSchoolOwner)

	require.NoError(t, dir.Close())
	require.NoError(t, admin.DropDatabase(ctx, name))

	_, err = admin.Connect(ctx, name)
	require.ErrorIs(t, err, tenantdb.ErrDatabaseNotFound)
}

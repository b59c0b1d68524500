package pg

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/teofly/gallery-api/internal/config"
	"github.com/teofly/gallery-api/internal/domain"
	internal_errors "github.com/teofly/gallery-api/internal/errors"
)

var storage *Storage

func TestMain(m *testing.M) {
	ctx := context.Background()
	var container *postgres.PostgresContainer
	storage, container = mustSetup(ctx)
	defer teardown(ctx, storage, container)

	exitCode := m.Run()
	os.Exit(exitCode)
}

func mustSetup(ctx context.Context) (*Storage, *postgres.PostgresContainer) {
	dbName := "gallery"
	dbUser := "user"
	dbPassword := "password"
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15.3-alpine"),
		postgres.WithInitScripts(filepath.Join("migrations", "init.sql")),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			// The container restarts itself after the first startup, so
			// wait for the readiness log twice.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("failed to start container: %s", err)
	}
	containerPort, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("failed to obtain container port: %s", err)
	}
	port, err := strconv.Atoi(containerPort.Port())
	if err != nil {
		log.Fatalf("failed to obtain int container port: %s", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("failed to obtain container host: %s", err)
	}

	storage, err := New(&config.Config{Private: config.Private{
		Pg:                 config.Pg{Host: host, Port: port, User: dbUser, Password: dbPassword, Dbname: dbName},
		AccessTokenSecret:  "a",
		RefreshTokenSecret: "r",
	}})
	if err != nil {
		log.Fatalf("failed to connect to postgres container: %s", err)
	}
	return storage, container
}

func teardown(ctx context.Context, storage *Storage, container *postgres.PostgresContainer) {
	if err := storage.Cleanup(); err != nil {
		log.Printf("failed to close storage connection: %s", err)
	}
	if err := container.Terminate(ctx); err != nil {
		log.Printf("failed to terminate container: %s", err)
	}
}

func newTestUser(email string) domain.User {
	return domain.User{
		Id:       uuid.New(),
		Email:    email,
		PassHash: "$2a$10$abcdefghijklmnopqrstuv",
		Name:     "Test Admin",
		Role:     domain.RoleAdmin,
		IsActive: true,
	}
}

func statusCode(t *testing.T, err error) int {
	t.Helper()
	e, ok := err.(*internal_errors.ErrorWithStatusCode)
	require.True(t, ok, "expected ErrorWithStatusCode, got %T: %v", err, err)
	return e.StatusCode
}

func TestSaveAndFetchUser(t *testing.T) {
	ctx := context.Background()
	user := newTestUser("save_fetch@example.com")

	saved, err := storage.SaveUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, user.Id, saved.Id)
	assert.Equal(t, user.Email, saved.Email)
	assert.Equal(t, domain.RoleAdmin, saved.Role)
	assert.True(t, saved.IsActive)
	assert.Equal(t, int64(0), saved.TokenVersion)
	assert.False(t, saved.CreatedAt.IsZero())

	byEmail, err := storage.UserByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.Id, byEmail.Id)

	byId, err := storage.UserById(ctx, user.Id)
	require.NoError(t, err)
	assert.Equal(t, user.Email, byId.Email)
}

func TestSaveUser_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	user := newTestUser("dup@example.com")

	_, err := storage.SaveUser(ctx, user)
	require.NoError(t, err)

	dup := newTestUser("dup@example.com")
	_, err = storage.SaveUser(ctx, dup)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, statusCode(t, err))
}

func TestUserById_NotFound(t *testing.T) {
	_, err := storage.UserById(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, statusCode(t, err))
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()
	user := newTestUser("update_pass@example.com")
	saved, err := storage.SaveUser(ctx, user)
	require.NoError(t, err)

	err = storage.UpdatePassword(ctx, saved.Id, "$2a$10$newhashnewhashnewhashn")
	require.NoError(t, err)

	fetched, err := storage.UserById(ctx, saved.Id)
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$newhashnewhashnewhashn", fetched.PassHash)
	// Password change must not touch anything else.
	assert.Equal(t, saved.Email, fetched.Email)
	assert.Equal(t, saved.TokenVersion, fetched.TokenVersion)
}

func TestUpdateProfile_KeepsHash(t *testing.T) {
	ctx := context.Background()
	user := newTestUser("update_profile@example.com")
	saved, err := storage.SaveUser(ctx, user)
	require.NoError(t, err)

	updated, err := storage.UpdateProfile(ctx, saved.Id, "Renamed", "renamed_profile@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "renamed_profile@example.com", updated.Email)
	assert.Equal(t, saved.PassHash, updated.PassHash)
}

func TestUpdateProfile_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	first, err := storage.SaveUser(ctx, newTestUser("taken@example.com"))
	require.NoError(t, err)
	second, err := storage.SaveUser(ctx, newTestUser("claimant@example.com"))
	require.NoError(t, err)
	_ = first

	_, err = storage.UpdateProfile(ctx, second.Id, "Claimant", "taken@example.com")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, statusCode(t, err))
}

func TestSetActive(t *testing.T) {
	ctx := context.Background()
	saved, err := storage.SaveUser(ctx, newTestUser("deactivate@example.com"))
	require.NoError(t, err)

	require.NoError(t, storage.SetActive(ctx, saved.Id, false))

	fetched, err := storage.UserById(ctx, saved.Id)
	require.NoError(t, err)
	assert.False(t, fetched.IsActive)

	require.NoError(t, storage.SetActive(ctx, saved.Id, true))
	fetched, err = storage.UserById(ctx, saved.Id)
	require.NoError(t, err)
	assert.True(t, fetched.IsActive)
}

func TestBumpTokenVersion(t *testing.T) {
	ctx := context.Background()
	saved, err := storage.SaveUser(ctx, newTestUser("bump@example.com"))
	require.NoError(t, err)

	require.NoError(t, storage.BumpTokenVersion(ctx, saved.Id))
	require.NoError(t, storage.BumpTokenVersion(ctx, saved.Id))

	fetched, err := storage.UserById(ctx, saved.Id)
	require.NoError(t, err)
	assert.Equal(t, saved.TokenVersion+2, fetched.TokenVersion)
}

func TestUpdateLastLogin(t *testing.T) {
	ctx := context.Background()
	saved, err := storage.SaveUser(ctx, newTestUser("lastlogin@example.com"))
	require.NoError(t, err)

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, storage.UpdateLastLogin(ctx, saved.Id, at))

	fetched, err := storage.UserById(ctx, saved.Id)
	require.NoError(t, err)
	assert.WithinDuration(t, at, fetched.LastLogin, time.Second)
}

func TestHasAdminAndDelete(t *testing.T) {
	ctx := context.Background()
	saved, err := storage.SaveUser(ctx, newTestUser("hasadmin@example.com"))
	require.NoError(t, err)

	exists, err := storage.HasAdmin(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, storage.DeleteUser(ctx, saved.Id))
	_, err = storage.UserById(ctx, saved.Id)
	require.Error(t, err)
}

func TestSetActive_NotFound(t *testing.T) {
	err := storage.SetActive(context.Background(), uuid.New(), false)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, statusCode(t, err))
}

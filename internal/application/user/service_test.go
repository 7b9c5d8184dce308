package user

import (
	"context"
	"sync"
	"testing"
	"time"

	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/pkg/apperr"
	"farmdirect-backend/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeMailer struct {
	mu       sync.Mutex
	welcomed []string
}

func (f *fakeMailer) SendWelcome(_ context.Context, to, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.welcomed = append(f.welcomed, to)
	return nil
}

func (f *fakeMailer) SendOTP(context.Context, string, string, time.Duration) error { return nil }

func setupUserDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.User{}))
	return db
}

func TestCreateUser(t *testing.T) {
	db := setupUserDB(t)
	mailer := &fakeMailer{}
	svc := &Service{DB: db, Mailer: mailer}

	u, err := svc.CreateUser(context.Background(), CreateUserInput{
		Fullname: "  ravi   kumar ",
		Email:    "Ravi@Example.com",
		Password: "secret12!",
		Phone:    "98765 43210",
		Role:     constants.Farmer,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ravi Kumar", u.Fullname)
	assert.Equal(t, "ravi@example.com", u.Email)
	assert.Equal(t, constants.Farmer, u.Role)
	require.NotNil(t, u.Phone)
	assert.Equal(t, "9876543210", *u.Phone)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret12!")))
	assert.Equal(t, []string{"ravi@example.com"}, mailer.welcomed)

	_, err = svc.CreateUser(context.Background(), CreateUserInput{Fullname: "Other", Email: "ravi@example.com", Password: "secret12!"})
	assert.True(t, apperr.IsKind(err, apperr.ValidationError))
}

func TestCreateUser_DefaultsAndRejects(t *testing.T) {
	db := setupUserDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, CreateUserInput{Fullname: "Asha", Email: "asha@example.com", Password: "secret12!"})
	require.NoError(t, err)
	assert.Equal(t, constants.Buyer, u.Role)

	cases := []CreateUserInput{
		{Fullname: "Asha", Email: "bad", Password: "secret12!"},
		{Fullname: "Asha", Email: "a2@example.com", Password: "short"},
		{Fullname: "", Email: "a3@example.com", Password: "secret12!"},
		{Fullname: "Asha 2", Email: "a4@example.com", Password: "secret12!"},
		{Fullname: "Asha", Email: "a5@example.com", Password: "secret12!", Phone: "12345"},
		{Fullname: "Asha", Email: "a6@example.com", Password: "secret12!", Role: constants.Admin},
	}
	for _, in := range cases {
		_, err := svc.CreateUser(ctx, in)
		assert.True(t, apperr.IsKind(err, apperr.ValidationError), in.Email)
	}
}

func TestUpdateUser(t *testing.T) {
	db := setupUserDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	u, err := svc.CreateUser(ctx, CreateUserInput{Fullname: "Asha", Email: "asha@example.com", Password: "secret12!", Phone: "9876543210"})
	require.NoError(t, err)

	got, err := svc.UpdateUser(ctx, u.UserID, map[string]interface{}{"fullname": "asha rao", "phone": "", "email": "ignored@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", got.Fullname)
	assert.Nil(t, got.Phone)
	assert.Equal(t, "asha@example.com", got.Email)

	_, err = svc.UpdateUser(ctx, u.UserID, map[string]interface{}{"email": "x@example.com"})
	assert.True(t, apperr.IsKind(err, apperr.ValidationError))
}

func TestUpdateUserRole_DestroysSessions(t *testing.T) {
	db := setupUserDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := &Service{DB: db, Rdb: rdb}
	ctx := context.Background()

	admin := domain.User{Fullname: "Admin", Email: "admin@example.com", PasswordHash: "x", Role: constants.Admin}
	require.NoError(t, db.Create(&admin).Error)
	target, err := svc.CreateUser(ctx, CreateUserInput{Fullname: "Asha", Email: "asha@example.com", Password: "secret12!"})
	require.NoError(t, err)

	require.NoError(t, rdb.SAdd(ctx, "user_sessions:"+target.UserID.String(), "s1").Err())
	require.NoError(t, rdb.Set(ctx, "session:s1", "data", 0).Err())

	got, err := svc.UpdateUserRole(ctx, UpdateUserRoleInput{
		ActorUserID:  admin.UserID.String(),
		ActorRole:    constants.Admin,
		TargetUserID: target.UserID.String(),
		TargetRole:   constants.Seller,
	})
	require.NoError(t, err)
	assert.Equal(t, constants.Seller, got.Role)
	assert.False(t, mr.Exists("session:s1"))
	assert.False(t, mr.Exists("user_sessions:"+target.UserID.String()))

	_, err = svc.UpdateUserRole(ctx, UpdateUserRoleInput{
		ActorUserID:  target.UserID.String(),
		ActorRole:    constants.Seller,
		TargetUserID: admin.UserID.String(),
		TargetRole:   constants.Buyer,
	})
	assert.Error(t, err)
}

package auth

import (
	"context"
	"testing"
	"time"

	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/infrastructure/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func setupAuthDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.User{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email, password string) *domain.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &domain.User{Fullname: "Ravi Kumar", Email: email, PasswordHash: string(hash), Role: "buyer"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func TestVerifyUser_Nil(t *testing.T) {
	u, err := VerifyUser(nil)
	assert.Nil(t, u)
	assert.Equal(t, ErrNotAuthenticated, err)
}

func TestVerifyUser_NoUserID(t *testing.T) {
	u, err := VerifyUser(map[string]interface{}{"fullname": "Test", "email": "a@b.com"})
	assert.Nil(t, u)
	assert.Equal(t, ErrNotAuthenticated, err)
}

func TestVerifyUser_Valid(t *testing.T) {
	u, err := VerifyUser(map[string]interface{}{
		"user_id":  "550e8400-e29b-41d4-a716-446655440000",
		"fullname": "Test User",
		"email":    "test@example.com",
		"role":     "farmer",
		"verified": true,
	})
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", u.UserID)
	assert.Equal(t, "Test User", u.Fullname)
	assert.Equal(t, "farmer", u.Role)
	assert.True(t, u.Verified)
}

func TestLoginUser(t *testing.T) {
	db := setupAuthDB(t)
	seedUser(t, db, "ravi@example.com", "secret12!")

	u, err := LoginUser(db, LoginInput{Email: " Ravi@Example.com ", Password: "secret12!"})
	require.NoError(t, err)
	assert.Equal(t, "ravi@example.com", u.Email)

	_, err = LoginUser(db, LoginInput{Email: "ravi@example.com", Password: "wrong"})
	assert.Equal(t, ErrIncorrectPassword, err)
	_, err = LoginUser(db, LoginInput{Email: "nobody@example.com", Password: "secret12!"})
	assert.Equal(t, ErrInvalidEmail, err)
	_, err = LoginUser(db, LoginInput{Email: "", Password: ""})
	assert.Equal(t, ErrEmailPasswordRequired, err)

	finder := &GormUserFinder{DB: db}
	_, err = finder.FindByEmailAndPassword("ravi@example.com", "secret12!")
	assert.NoError(t, err)
}

type capturingMailer struct{ code string }

func (m *capturingMailer) SendWelcome(context.Context, string, string) error { return nil }
func (m *capturingMailer) SendOTP(_ context.Context, _ string, code string, _ time.Duration) error {
	m.code = code
	return nil
}

func TestOTP_RequestAndVerify(t *testing.T) {
	db := setupAuthDB(t)
	seedUser(t, db, "ravi@example.com", "secret12!")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mailer := &capturingMailer{}
	svc := &OTPService{DB: db, Store: cache.NewOTPStore(rdb, 5*time.Minute), Mailer: mailer}
	ctx := context.Background()

	require.NoError(t, svc.Request(ctx, "Ravi@example.com"))
	require.Len(t, mailer.code, 6)

	wrong := "000000"
	if mailer.code == wrong {
		wrong = "111111"
	}
	_, err := svc.Verify(ctx, "ravi@example.com", wrong)
	assert.Equal(t, ErrInvalidOTP, err)

	u, err := svc.Verify(ctx, "ravi@example.com", mailer.code)
	require.NoError(t, err)
	assert.True(t, u.Verified)

	// single use
	_, err = svc.Verify(ctx, "ravi@example.com", mailer.code)
	assert.Equal(t, ErrInvalidOTP, err)
}

func TestOTP_UnknownEmailAndExpiry(t *testing.T) {
	db := setupAuthDB(t)
	seedUser(t, db, "ravi@example.com", "secret12!")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mailer := &capturingMailer{}
	svc := &OTPService{DB: db, Store: cache.NewOTPStore(rdb, time.Minute), Mailer: mailer}
	ctx := context.Background()

	require.NoError(t, svc.Request(ctx, "ghost@example.com"))
	assert.Empty(t, mailer.code)
	assert.Equal(t, ErrInvalidEmail, svc.Request(ctx, "bad"))

	require.NoError(t, svc.Request(ctx, "ravi@example.com"))
	mr.FastForward(2 * time.Minute)
	_, err := svc.Verify(ctx, "ravi@example.com", mailer.code)
	assert.Equal(t, ErrInvalidOTP, err)
}

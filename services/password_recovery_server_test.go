package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/api"
	"github.com/biihlive/authcodes/domain"
	apierrors "github.com/biihlive/authcodes/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mock Implementations ---

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}
func (m *MockUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
func (m *MockUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}
func (m *MockUserRepository) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) StoreSession(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}
func (m *MockSessionRepository) GetSessionByTokenID(ctx context.Context, tokenID string) (*domain.Session, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}
func (m *MockSessionRepository) RevokeSessionsByUserID(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockPasswordHasher struct {
	mock.Mock
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// --- PasswordRecoveryServer Tests ---

type recoveryFixture struct {
	*codeServiceFixture
	server   *PasswordRecoveryServer
	users    *MockUserRepository
	sessions *MockSessionRepository
	hasher   *MockPasswordHasher
}

var testUser = &domain.User{ID: "user-1", Email: "ana@example.com", Status: domain.UserStatusActive}

func newRecoveryFixture(t *testing.T, codes ...string) *recoveryFixture {
	t.Helper()
	f := &recoveryFixture{
		codeServiceFixture: newCodeServiceFixture(t, domain.CodeKindPasswordRecovery, codes...),
		users:              new(MockUserRepository),
		sessions:           new(MockSessionRepository),
		hasher:             new(MockPasswordHasher),
	}
	f.server = NewPasswordRecoveryServer(f.users, f.sessions, f.hasher, f.svc)
	f.users.On("GetUserByEmail", mock.Anything, "ana@example.com").Return(testUser, nil).Maybe()
	f.users.On("GetUserByEmail", mock.Anything, mock.Anything).Return(nil, domain.ErrUserNotFound).Maybe()
	return f
}

func (f *recoveryFixture) send(t *testing.T) {
	t.Helper()
	_, err := f.server.SendPasswordRecoveryCode(context.Background(),
		connect.NewRequest(&api.SendPasswordRecoveryCodeRequest{Email: "ana@example.com"}))
	require.NoError(t, err)
}

func (f *recoveryFixture) verify(code string) error {
	_, err := f.server.VerifyPasswordRecoveryCode(context.Background(),
		connect.NewRequest(&api.VerifyPasswordRecoveryCodeRequest{Email: "ana@example.com", Code: code}))
	return err
}

func (f *recoveryFixture) reset(code, password string) error {
	_, err := f.server.ResetPasswordWithCode(context.Background(),
		connect.NewRequest(&api.ResetPasswordWithCodeRequest{Email: "ana@example.com", Code: code, NewPassword: password}))
	return err
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, connect.CodeOf(err), "error: %v", err)
}

func TestPasswordRecoveryServer_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("known email", func(t *testing.T) {
		f := newRecoveryFixture(t, "482913")
		resp, err := f.server.SendPasswordRecoveryCode(ctx,
			connect.NewRequest(&api.SendPasswordRecoveryCodeRequest{Email: "  Ana@Example.com "}))
		require.NoError(t, err)
		assert.True(t, resp.Msg.Success)
		assert.Equal(t, MsgRecoveryCodeSent, resp.Msg.Message)

		rec, err := f.store.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "482913", rec.Code)
		assert.Equal(t, 10*time.Minute, rec.ExpiresAt.Sub(rec.CreatedAt))
		assert.Equal(t, "ana@example.com", f.sender.last().to)
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newRecoveryFixture(t)
		_, err := f.server.SendPasswordRecoveryCode(ctx,
			connect.NewRequest(&api.SendPasswordRecoveryCodeRequest{Email: "nadie@example.com"}))
		assertCode(t, err, connect.CodeNotFound)
		assert.Empty(t, f.sender.sent)
	})

	t.Run("malformed email", func(t *testing.T) {
		f := newRecoveryFixture(t)
		_, err := f.server.SendPasswordRecoveryCode(ctx,
			connect.NewRequest(&api.SendPasswordRecoveryCodeRequest{Email: "not-an-email"}))
		assertCode(t, err, connect.CodeInvalidArgument)
		f.users.AssertNotCalled(t, "GetUserByEmail", mock.Anything, mock.Anything)
	})

	t.Run("mail failure", func(t *testing.T) {
		f := newRecoveryFixture(t)
		f.sender.err = errors.New("smtp: 535 authentication failed")
		_, err := f.server.SendPasswordRecoveryCode(ctx,
			connect.NewRequest(&api.SendPasswordRecoveryCodeRequest{Email: "ana@example.com"}))
		assertCode(t, err, connect.CodeInternal)
	})

	t.Run("identity store down", func(t *testing.T) {
		f := &recoveryFixture{
			codeServiceFixture: newCodeServiceFixture(t, domain.CodeKindPasswordRecovery),
			users:              new(MockUserRepository),
		}
		f.server = NewPasswordRecoveryServer(f.users, nil, nil, f.svc)
		f.users.On("GetUserByEmail", mock.Anything, "ana@example.com").Return(nil, errors.New("server selection timeout"))
		_, err := f.server.SendPasswordRecoveryCode(ctx,
			connect.NewRequest(&api.SendPasswordRecoveryCodeRequest{Email: "ana@example.com"}))
		assertCode(t, err, connect.CodeInternal)
		var cerr *connect.Error
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, apierrors.MsgInternal, cerr.Message())
	})
}

func TestPasswordRecoveryServer_Verify(t *testing.T) {
	t.Run("correct code, repeatable", func(t *testing.T) {
		f := newRecoveryFixture(t, "482913")
		f.send(t)
		require.NoError(t, f.verify("482913"))
		require.NoError(t, f.verify("482913"))
	})

	t.Run("wrong code", func(t *testing.T) {
		f := newRecoveryFixture(t, "482913")
		f.send(t)
		err := f.verify("000000")
		assertCode(t, err, connect.CodeInvalidArgument)
		var cerr *connect.Error
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, apierrors.MsgCodeMismatch, cerr.Message())
	})

	t.Run("no code requested", func(t *testing.T) {
		f := newRecoveryFixture(t)
		assertCode(t, f.verify("482913"), connect.CodeNotFound)
	})

	t.Run("expired after eleven minutes", func(t *testing.T) {
		f := newRecoveryFixture(t, "482913")
		f.send(t)
		f.clock.Advance(11 * time.Minute)
		assertCode(t, f.verify("482913"), connect.CodeDeadlineExceeded)
	})

	t.Run("sixth attempt is exhausted", func(t *testing.T) {
		f := newRecoveryFixture(t, "482913")
		f.send(t)
		for i := 0; i < 5; i++ {
			assertCode(t, f.verify("000000"), connect.CodeInvalidArgument)
		}
		assertCode(t, f.verify("482913"), connect.CodeResourceExhausted)
	})

	t.Run("code with letters", func(t *testing.T) {
		f := newRecoveryFixture(t)
		assertCode(t, f.verify("12a456"), connect.CodeInvalidArgument)
	})
}

func TestPasswordRecoveryServer_Reset(t *testing.T) {
	t.Run("success revokes sessions", func(t *testing.T) {
		f := newRecoveryFixture(t, "482913")
		f.send(t)
		f.hasher.On("Hash", "nueva-clave").Return("hashed", nil).Once()
		f.users.On("UpdatePassword", mock.Anything, "user-1", "hashed").Return(nil).Once()
		f.sessions.On("RevokeSessionsByUserID", mock.Anything, "user-1").Return(int64(3), nil).Once()

		require.NoError(t, f.reset("482913", "nueva-clave"))

		rec, err := f.store.Get(context.Background(), "user-1")
		require.NoError(t, err)
		assert.True(t, rec.IsUsed)
		f.hasher.AssertExpectations(t)
		f.users.AssertExpectations(t)
		f.sessions.AssertExpectations(t)

		t.Run("second reset is refused", func(t *testing.T) {
			assertCode(t, f.reset("482913", "otra-clave"), connect.CodeInvalidArgument)
			f.hasher.AssertNumberOfCalls(t, "Hash", 1)
		})
	})

	t.Run("short password", func(t *testing.T) {
		f := newRecoveryFixture(t, "482913")
		f.send(t)
		assertCode(t, f.reset("482913", "12345"), connect.CodeInvalidArgument)

		rec, err := f.store.Get(context.Background(), "user-1")
		require.NoError(t, err)
		assert.False(t, rec.IsUsed, "a rejected request must not spend the code")
	})

	t.Run("wrong code counts as attempt", func(t *testing.T) {
		f := newRecoveryFixture(t, "482913")
		f.send(t)
		assertCode(t, f.reset("000000", "nueva-clave"), connect.CodeInvalidArgument)

		rec, err := f.store.Get(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, 1, rec.Attempts)
		f.hasher.AssertNotCalled(t, "Hash", mock.Anything)
	})

	t.Run("expired code", func(t *testing.T) {
		f := newRecoveryFixture(t, "482913")
		f.send(t)
		f.clock.Advance(11 * time.Minute)
		assertCode(t, f.reset("482913", "nueva-clave"), connect.CodeDeadlineExceeded)
	})

	t.Run("password update fails", func(t *testing.T) {
		f := newRecoveryFixture(t, "482913")
		f.send(t)
		f.hasher.On("Hash", "nueva-clave").Return("hashed", nil)
		f.users.On("UpdatePassword", mock.Anything, "user-1", "hashed").Return(errors.New("write conflict"))

		assertCode(t, f.reset("482913", "nueva-clave"), connect.CodeInternal)
		f.sessions.AssertNotCalled(t, "RevokeSessionsByUserID", mock.Anything, mock.Anything)
	})

	t.Run("failed password update keeps the code usable", func(t *testing.T) {
		f := newRecoveryFixture(t, "482913")
		f.send(t)
		f.hasher.On("Hash", "nueva-clave").Return("hashed", nil)
		f.users.On("UpdatePassword", mock.Anything, "user-1", "hashed").Return(errors.New("write conflict")).Once()
		assertCode(t, f.reset("482913", "nueva-clave"), connect.CodeInternal)

		rec, err := f.store.Get(context.Background(), "user-1")
		require.NoError(t, err)
		assert.False(t, rec.IsUsed)
		assert.Zero(t, rec.Attempts)

		f.users.On("UpdatePassword", mock.Anything, "user-1", "hashed").Return(nil).Once()
		f.sessions.On("RevokeSessionsByUserID", mock.Anything, "user-1").Return(int64(1), nil).Once()
		require.NoError(t, f.reset("482913", "nueva-clave"))

		rec, err = f.store.Get(context.Background(), "user-1")
		require.NoError(t, err)
		assert.True(t, rec.IsUsed)
		f.sessions.AssertExpectations(t)
	})

	t.Run("hash failure keeps the code usable", func(t *testing.T) {
		f := newRecoveryFixture(t, "482913")
		f.send(t)
		f.hasher.On("Hash", "nueva-clave").Return("", errors.New("entropy exhausted"))
		assertCode(t, f.reset("482913", "nueva-clave"), connect.CodeInternal)

		rec, err := f.store.Get(context.Background(), "user-1")
		require.NoError(t, err)
		assert.False(t, rec.IsUsed)
		f.users.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPasswordRecoveryServer_Resend(t *testing.T) {
	ctx := context.Background()
	resend := func(f *recoveryFixture) error {
		_, err := f.server.ResendPasswordRecoveryCode(ctx,
			connect.NewRequest(&api.ResendPasswordRecoveryCodeRequest{Email: "ana@example.com"}))
		return err
	}

	f := newRecoveryFixture(t, "111111", "222222")
	f.send(t)

	f.clock.Advance(59 * time.Second)
	assertCode(t, resend(f), connect.CodeResourceExhausted)

	f.clock.Advance(2 * time.Second)
	require.NoError(t, resend(f))
	assertCode(t, f.verify("111111"), connect.CodeInvalidArgument)
	require.NoError(t, f.verify("222222"))
}

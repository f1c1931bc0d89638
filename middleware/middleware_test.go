package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSessionValidator struct {
	mock.Mock
}

func (m *MockSessionValidator) Validate(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func TestSessionMiddleware(t *testing.T) {
	session := &domain.Session{ID: "s1", UserID: "u1", TokenID: "jti-1", ExpiresAt: time.Now().Add(time.Hour)}

	tests := []struct {
		name       string
		header     string
		setup      func(v *MockSessionValidator)
		wantStatus int
	}{
		{
			name:       "missing header",
			setup:      func(v *MockSessionValidator) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "revoked session",
			header: "Bearer stale",
			setup: func(v *MockSessionValidator) {
				v.On("Validate", mock.Anything, "stale").Return(nil, domain.ErrInvalidSessionID)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			header:     "Basic dXNlcjpwYXNz",
			setup:      func(v *MockSessionValidator) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "scheme is case-insensitive",
			header: "bearer good",
			setup: func(v *MockSessionValidator) {
				v.On("Validate", mock.Anything, "good").Return(session, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "live session",
			header: "Bearer good",
			setup: func(v *MockSessionValidator) {
				v.On("Validate", mock.Anything, "good").Return(session, nil)
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := new(MockSessionValidator)
			tt.setup(validator)

			var seen *domain.Session
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = SessionFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			handler := NewSessionMiddleware(validator).Wrap(inner)

			req := httptest.NewRequest(http.MethodPost, "/biihlive.auth.v1.SessionService/GetSession", nil)
			req.Header.Set("Content-Type", "application/json")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, "u1", seen.UserID)
			}
			validator.AssertExpectations(t)
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"BEARER abc", "abc", true},
		{"Bearer ", "", false},
		{"Bearer", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}

func TestSessionFromContext_Empty(t *testing.T) {
	_, ok := SessionFromContext(context.Background())
	assert.False(t, ok)
}

type fakeRequest struct {
	connect.AnyRequest
	procedure string
}

func (r fakeRequest) Spec() connect.Spec { return connect.Spec{Procedure: r.procedure} }
func (r fakeRequest) Peer() connect.Peer { return connect.Peer{Addr: "127.0.0.1:5000"} }

func TestLoggingInterceptor(t *testing.T) {
	interceptor := NewLoggingInterceptor()
	req := fakeRequest{procedure: "/biihlive.auth.v1.EmailVerificationService/VerifyEmailCode"}

	t.Run("passes errors through", func(t *testing.T) {
		want := connect.NewError(connect.CodeDeadlineExceeded, errors.New("expired"))
		next := interceptor.WrapUnary(func(ctx context.Context, r connect.AnyRequest) (connect.AnyResponse, error) {
			return nil, want
		})
		_, err := next(context.Background(), req)
		assert.Equal(t, connect.CodeDeadlineExceeded, connect.CodeOf(err))
	})

	t.Run("recovers panics", func(t *testing.T) {
		next := interceptor.WrapUnary(func(ctx context.Context, r connect.AnyRequest) (connect.AnyResponse, error) {
			panic("boom")
		})
		resp, err := next(context.Background(), req)
		assert.Nil(t, resp)
		assert.Equal(t, connect.CodeInternal, connect.CodeOf(err))
	})
}

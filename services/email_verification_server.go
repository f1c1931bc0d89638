package services

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/api"
	"github.com/biihlive/authcodes/domain"
	apierrors "github.com/biihlive/authcodes/errors"
	"github.com/biihlive/authcodes/internal/audit"
	"github.com/biihlive/authcodes/rpc"
	"github.com/rs/zerolog/log"
)

const emailVerificationAuditService = "email_verification"

const (
	MsgVerificationCodeSent   = "Te enviamos un código de verificación a tu correo electrónico"
	MsgEmailVerified          = "Tu correo electrónico fue verificado"
	MsgVerificationCodeResent = "Te enviamos un nuevo código de verificación"
)

// EmailVerificationServer implements rpc.EmailVerificationServiceHandler.
// The caller supplies the user id right after sign-up; it is not looked up
// before issuing.
type EmailVerificationServer struct {
	userRepo domain.UserRepository
	codes    *CodeService
	now      func() time.Time
}

func NewEmailVerificationServer(userRepo domain.UserRepository, codes *CodeService) *EmailVerificationServer {
	return &EmailVerificationServer{userRepo: userRepo, codes: codes, now: time.Now}
}

func (s *EmailVerificationServer) SendEmailVerificationCode(ctx context.Context, req *connect.Request[api.SendEmailVerificationCodeRequest]) (*connect.Response[api.CodeResponse], error) {
	msg := api.SendEmailVerificationCodeRequest{Email: api.NormalizeEmail(req.Msg.Email), UserID: req.Msg.UserID}
	if err := api.Validate(&msg); err != nil {
		return nil, apierrors.ToConnect(err)
	}

	err := s.codes.Issue(ctx, msg.UserID, msg.Email)
	audit.Log(emailVerificationAuditService, audit.ActionCodeIssued, msg.UserID, msg.Email, "", err == nil, err)
	if err != nil {
		return nil, s.fail(err, "send", msg.UserID)
	}
	return ok(MsgVerificationCodeSent), nil
}

// VerifyEmailCode spends the code and flags the address as verified. The
// flag is best effort: the code stays spent if the identity update fails.
func (s *EmailVerificationServer) VerifyEmailCode(ctx context.Context, req *connect.Request[api.VerifyEmailCodeRequest]) (*connect.Response[api.CodeResponse], error) {
	msg := *req.Msg
	if err := api.Validate(&msg); err != nil {
		return nil, apierrors.ToConnect(err)
	}

	rec, err := s.codes.Consume(ctx, msg.UserID, msg.Code)
	if err != nil {
		audit.Log(emailVerificationAuditService, audit.ActionCodeRejected, msg.UserID, "", "verify", false, err)
		return nil, s.fail(err, "verify", msg.UserID)
	}
	audit.Log(emailVerificationAuditService, audit.ActionCodeVerified, msg.UserID, rec.Email, "verify", true, nil)

	verifiedAt := s.now().UTC()
	if rec.UsedAt != nil {
		verifiedAt = *rec.UsedAt
	}
	if err := s.userRepo.MarkEmailVerified(ctx, msg.UserID, verifiedAt); err != nil {
		log.Warn().Err(err).Str("userID", msg.UserID).Str("email", rec.Email).Msg("Failed to mark email as verified")
		audit.Log(emailVerificationAuditService, audit.ActionEmailVerified, msg.UserID, rec.Email, "", false, err)
	} else {
		audit.Log(emailVerificationAuditService, audit.ActionEmailVerified, msg.UserID, rec.Email, "", true, nil)
	}
	return ok(MsgEmailVerified), nil
}

func (s *EmailVerificationServer) ResendEmailVerificationCode(ctx context.Context, req *connect.Request[api.ResendEmailVerificationCodeRequest]) (*connect.Response[api.CodeResponse], error) {
	msg := api.ResendEmailVerificationCodeRequest{Email: api.NormalizeEmail(req.Msg.Email), UserID: req.Msg.UserID}
	if err := api.Validate(&msg); err != nil {
		return nil, apierrors.ToConnect(err)
	}

	err := s.codes.Resend(ctx, msg.UserID, msg.Email)
	audit.Log(emailVerificationAuditService, audit.ActionCodeResent, msg.UserID, msg.Email, "", err == nil, err)
	if err != nil {
		return nil, s.fail(err, "resend", msg.UserID)
	}
	return ok(MsgVerificationCodeResent), nil
}

func (s *EmailVerificationServer) fail(err error, op, userID string) *connect.Error {
	if !isExpected(err) {
		log.Error().Err(err).Str("op", op).Str("userID", userID).Msg("Email verification failed")
	}
	return apierrors.ToConnect(err)
}

var _ rpc.EmailVerificationServiceHandler = (*EmailVerificationServer)(nil)

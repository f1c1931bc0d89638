package services

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/api"
	"github.com/biihlive/authcodes/domain"
	apierrors "github.com/biihlive/authcodes/errors"
	"github.com/biihlive/authcodes/internal/audit"
	"github.com/biihlive/authcodes/internal/metrics"
	"github.com/biihlive/authcodes/rpc"
	"github.com/rs/zerolog/log"
)

const passwordRecoveryAuditService = "password_recovery"

// Success messages shown by the app.
const (
	MsgRecoveryCodeSent   = "Te enviamos un código de recuperación a tu correo electrónico"
	MsgRecoveryCodeValid  = "Código verificado correctamente"
	MsgPasswordReset      = "Tu contraseña se actualizó correctamente"
	MsgRecoveryCodeResent = "Te enviamos un nuevo código de recuperación"
)

// PasswordRecoveryServer implements rpc.PasswordRecoveryServiceHandler.
// Codes are keyed by the id of the account owning the email address.
type PasswordRecoveryServer struct {
	userRepo    domain.UserRepository
	sessionRepo domain.SessionRepository
	hasher      PasswordHasher
	codes       *CodeService
}

// NewPasswordRecoveryServer creates a new PasswordRecoveryServer.
func NewPasswordRecoveryServer(userRepo domain.UserRepository, sessionRepo domain.SessionRepository, hasher PasswordHasher, codes *CodeService) *PasswordRecoveryServer {
	return &PasswordRecoveryServer{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		codes:       codes,
	}
}

func (s *PasswordRecoveryServer) SendPasswordRecoveryCode(ctx context.Context, req *connect.Request[api.SendPasswordRecoveryCodeRequest]) (*connect.Response[api.CodeResponse], error) {
	email := api.NormalizeEmail(req.Msg.Email)
	if err := api.Validate(&api.SendPasswordRecoveryCodeRequest{Email: email}); err != nil {
		return nil, apierrors.ToConnect(err)
	}
	user, err := s.lookup(ctx, email)
	if err != nil {
		return nil, apierrors.ToConnect(err)
	}

	err = s.codes.Issue(ctx, user.ID, email)
	audit.Log(passwordRecoveryAuditService, audit.ActionCodeIssued, user.ID, email, "", err == nil, err)
	if err != nil {
		return nil, s.fail(err, "send", email)
	}
	return ok(MsgRecoveryCodeSent), nil
}

func (s *PasswordRecoveryServer) VerifyPasswordRecoveryCode(ctx context.Context, req *connect.Request[api.VerifyPasswordRecoveryCodeRequest]) (*connect.Response[api.CodeResponse], error) {
	msg := api.VerifyPasswordRecoveryCodeRequest{Email: api.NormalizeEmail(req.Msg.Email), Code: req.Msg.Code}
	if err := api.Validate(&msg); err != nil {
		return nil, apierrors.ToConnect(err)
	}
	user, err := s.lookup(ctx, msg.Email)
	if err != nil {
		return nil, apierrors.ToConnect(err)
	}

	if _, err := s.codes.Check(ctx, user.ID, msg.Code); err != nil {
		audit.Log(passwordRecoveryAuditService, audit.ActionCodeRejected, user.ID, msg.Email, "verify", false, err)
		return nil, s.fail(err, "verify", msg.Email)
	}
	audit.Log(passwordRecoveryAuditService, audit.ActionCodeVerified, user.ID, msg.Email, "verify", true, nil)
	return ok(MsgRecoveryCodeValid), nil
}

// ResetPasswordWithCode checks the code, stores the new password hash, spends
// the code and signs the account out everywhere. The code is spent only after
// the password is written, so a failed write can be retried with it.
func (s *PasswordRecoveryServer) ResetPasswordWithCode(ctx context.Context, req *connect.Request[api.ResetPasswordWithCodeRequest]) (*connect.Response[api.CodeResponse], error) {
	msg := api.ResetPasswordWithCodeRequest{
		Email:       api.NormalizeEmail(req.Msg.Email),
		Code:        req.Msg.Code,
		NewPassword: req.Msg.NewPassword,
	}
	if err := api.Validate(&msg); err != nil {
		return nil, apierrors.ToConnect(err)
	}
	user, err := s.lookup(ctx, msg.Email)
	if err != nil {
		return nil, apierrors.ToConnect(err)
	}

	if _, err := s.codes.Check(ctx, user.ID, msg.Code); err != nil {
		audit.Log(passwordRecoveryAuditService, audit.ActionCodeRejected, user.ID, msg.Email, "reset", false, err)
		return nil, s.fail(err, "reset", msg.Email)
	}

	hash, err := s.hasher.Hash(msg.NewPassword)
	if err != nil {
		return nil, s.fail(fmt.Errorf("hash password: %w", err), "reset", msg.Email)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		audit.Log(passwordRecoveryAuditService, audit.ActionPasswordReset, user.ID, msg.Email, "", false, err)
		return nil, s.fail(fmt.Errorf("update password: %w", err), "reset", msg.Email)
	}
	audit.Log(passwordRecoveryAuditService, audit.ActionPasswordReset, user.ID, msg.Email, "", true, nil)

	if _, err := s.codes.MarkUsed(ctx, user.ID); err != nil {
		// A concurrent reset with the same code got here first; its password
		// write may be the one that stuck, so do not report success.
		audit.Log(passwordRecoveryAuditService, audit.ActionCodeRejected, user.ID, msg.Email, "reset", false, err)
		return nil, s.fail(err, "reset", msg.Email)
	}

	revoked, err := s.sessionRepo.RevokeSessionsByUserID(ctx, user.ID)
	audit.Log(passwordRecoveryAuditService, audit.ActionSessionsRevoked, user.ID, msg.Email,
		fmt.Sprintf("revoked=%d", revoked), err == nil, err)
	if err != nil {
		return nil, s.fail(fmt.Errorf("revoke sessions: %w", err), "reset", msg.Email)
	}
	metrics.SessionsRevokedTotal.Add(float64(revoked))

	log.Info().Str("userID", user.ID).Str("email", msg.Email).Int64("sessions_revoked", revoked).
		Msg("Password reset with recovery code")
	return ok(MsgPasswordReset), nil
}

func (s *PasswordRecoveryServer) ResendPasswordRecoveryCode(ctx context.Context, req *connect.Request[api.ResendPasswordRecoveryCodeRequest]) (*connect.Response[api.CodeResponse], error) {
	email := api.NormalizeEmail(req.Msg.Email)
	if err := api.Validate(&api.ResendPasswordRecoveryCodeRequest{Email: email}); err != nil {
		return nil, apierrors.ToConnect(err)
	}
	user, err := s.lookup(ctx, email)
	if err != nil {
		return nil, apierrors.ToConnect(err)
	}

	err = s.codes.Resend(ctx, user.ID, email)
	audit.Log(passwordRecoveryAuditService, audit.ActionCodeResent, user.ID, email, "", err == nil, err)
	if err != nil {
		return nil, s.fail(err, "resend", email)
	}
	return ok(MsgRecoveryCodeResent), nil
}

func (s *PasswordRecoveryServer) lookup(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if !isExpected(err) {
			log.Error().Err(err).Str("email", email).Msg("Failed to look up user for password recovery")
		}
		return nil, err
	}
	return user, nil
}

func (s *PasswordRecoveryServer) fail(err error, op, email string) *connect.Error {
	if !isExpected(err) {
		log.Error().Err(err).Str("op", op).Str("email", email).Msg("Password recovery failed")
	}
	return apierrors.ToConnect(err)
}

var _ rpc.PasswordRecoveryServiceHandler = (*PasswordRecoveryServer)(nil)

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is a read-only view over a live refresh token: one session per
// token. The token value itself is never exposed, only the client context
// captured when the session was established.
type Session struct {
	AccountID uuid.UUID  `json:"account_id"`
	UserAgent string     `json:"user_agent,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func (s Session) String() string {
	createdAt := "<nil>"
	if s.CreatedAt != nil {
		createdAt = s.CreatedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"account=%s ua=%s ip=%s created=%s expires=%s",
		s.AccountID,
		s.UserAgent,
		s.IPAddress,
		createdAt,
		s.ExpiresAt.Format(time.RFC1123),
	)
}

func sessionFromRefreshToken(record *RefreshToken) Session {
	return Session{
		AccountID: record.AccountID,
		UserAgent: record.UserAgent,
		IPAddress: record.IPAddress,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}
}

// ActiveSessions lists the live sessions for an account, newest first.
func (s *Auther) ActiveSessions(ctx context.Context, accountID uuid.UUID) ([]Session, error) {
	records, err := s.repo.RefreshTokens().ListActiveForAccount(ctx, accountID, s.now())
	if err != nil {
		return nil, err
	}

	sessions := make([]Session, 0, len(records))
	for _, record := range records {
		sessions = append(sessions, sessionFromRefreshToken(record))
	}

	return sessions, nil
}

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/quorumhq/chatgate/models"
	"go.uber.org/zap"
)

// ErrInvalidAssertion is returned when an upstream identity assertion
// fails signature or claim validation.
var ErrInvalidAssertion = errors.New("invalid identity assertion")

// HandoffClaims are the claims accepted from an upstream identity
// provider during the external-auth handoff. Subject carries the
// upstream user ID as a UUID.
type HandoffClaims struct {
	Email       string `json:"email"`
	FirstName   string `json:"given_name"`
	LastName    string `json:"family_name"`
	CompanyID   string `json:"company_id,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Role        string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Handoff exchanges signed upstream identity assertions for first-party
// sessions.
type Handoff struct {
	secret  []byte
	issuer  *Issuer
	ladders LadderResolver
	ttl     time.Duration
	logger  *zap.Logger
}

// NewHandoff creates a new Handoff exchanger
func NewHandoff(secret []byte, issuer *Issuer, ladders LadderResolver, ttl time.Duration, logger *zap.Logger) *Handoff {
	return &Handoff{
		secret:  secret,
		issuer:  issuer,
		ladders: ladders,
		ttl:     ttl,
		logger:  logger,
	}
}

// Exchange verifies an upstream assertion and issues a session for the
// identity it carries. The assertion's role name is mapped through the
// target tenant's (auto-seeded) ladder; an unknown or absent role gets
// the base user level.
func (h *Handoff) Exchange(ctx context.Context, assertion string) (*models.Session, error) {
	claims := &HandoffClaims{}
	token, err := jwt.ParseWithClaims(assertion, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return h.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		h.logger.Warn("identity assertion rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}
	if !token.Valid {
		return nil, ErrInvalidAssertion
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrInvalidAssertion)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a UUID", ErrInvalidAssertion)
	}

	var companyID *uuid.UUID
	if claims.CompanyID != "" {
		parsed, err := uuid.Parse(claims.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("%w: company_id is not a UUID", ErrInvalidAssertion)
		}
		companyID = &parsed
	}

	roleLevel := models.LevelUser
	if claims.Role != "" {
		ladder, err := h.ladders.LadderFor(ctx, companyID)
		if err != nil {
			return nil, fmt.Errorf("failed to load role ladder: %w", err)
		}
		if level, ok := ladder.LevelOf(models.RoleName(claims.Role)); ok {
			roleLevel = level
		} else {
			h.logger.Warn("assertion role not on ladder, defaulting to user",
				zap.String("role", claims.Role))
		}
	}

	return h.issuer.Issue(ctx, Identity{
		UserID:      userID,
		Email:       claims.Email,
		FirstName:   claims.FirstName,
		LastName:    claims.LastName,
		CompanyID:   companyID,
		CompanyName: claims.CompanyName,
		RoleLevel:   roleLevel,
	}, h.ttl)
}

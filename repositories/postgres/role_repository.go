package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/quorumhq/chatgate/models"
	"github.com/quorumhq/chatgate/repositories"
	"go.uber.org/zap"
)

// RoleRepository implements the repositories.RoleRepository interface
type RoleRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB, logger *zap.Logger) repositories.RoleRepository {
	return &RoleRepository{
		db:     db,
		logger: logger,
	}
}

// GetLadder retrieves a company's role ladder ordered by level
func (r *RoleRepository) GetLadder(ctx context.Context, companyID uuid.UUID) (models.Ladder, error) {
	query := `
		SELECT company_id, name, level, created_at
		FROM company_roles
		WHERE company_id = $1
		ORDER BY level ASC
	`

	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query role ladder: %w", err)
	}
	defer rows.Close()

	var ladder models.Ladder
	for rows.Next() {
		role := models.Role{}
		err := rows.Scan(
			&role.CompanyID,
			&role.Name,
			&role.Level,
			&role.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		ladder = append(ladder, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role rows: %w", err)
	}

	return ladder, nil
}

// SeedLadder inserts the given ladder for a company. Existing entries
// are left untouched so concurrent seeding is harmless.
func (r *RoleRepository) SeedLadder(ctx context.Context, companyID uuid.UUID, ladder models.Ladder) error {
	query := `
		INSERT INTO company_roles (company_id, name, level, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (company_id, name) DO NOTHING
	`

	for _, role := range ladder {
		if _, err := r.db.ExecContext(ctx, query, companyID, role.Name, role.Level, role.CreatedAt); err != nil {
			return fmt.Errorf("failed to seed role %q: %w", role.Name, err)
		}
	}

	r.logger.Info("role ladder seeded",
		zap.String("company_id", companyID.String()),
		zap.Int("roles", len(ladder)))
	return nil
}

package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	auth "github.com/niyiment/vaccination-auth"
)

// RoleResolver expands role names into role plus permission claims from
// the role_permissions table.
type RoleResolver struct {
	pool *pgxpool.Pool
}

func NewRoleResolver(pool *pgxpool.Pool) *RoleResolver {
	return &RoleResolver{pool: pool}
}

func (r *RoleResolver) RolesAndPermissionsFor(ctx context.Context, account *auth.Account) ([]string, error) {
	if len(account.Roles) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT permission FROM role_permissions
		WHERE role_name = ANY($1)
		ORDER BY permission`
	rows, err := r.pool.Query(ctx, query, account.Roles)
	if err != nil {
		return nil, fmt.Errorf("resolve permissions: %w", err)
	}
	defer rows.Close()

	claims := make([]string, 0, len(account.Roles)+8)
	seen := make(map[string]struct{}, len(account.Roles))
	for _, role := range account.Roles {
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		claims = append(claims, role)
	}

	for rows.Next() {
		var perm string
		if err := rows.Scan(&perm); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		if _, dup := seen[perm]; dup {
			continue
		}
		seen[perm] = struct{}{}
		claims = append(claims, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolve permissions: %w", err)
	}
	return claims, nil
}

var _ auth.RoleResolver = (*RoleResolver)(nil)

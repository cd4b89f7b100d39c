package auth

import "context"

// StaticRoleResolver maps role names to permission lists from a fixed
// table. The resolved claim set is the account's role names followed by
// the deduplicated permissions of those roles.
type StaticRoleResolver struct {
	permissions map[string][]string
}

func NewStaticRoleResolver(rolePermissions map[string][]string) *StaticRoleResolver {
	perms := make(map[string][]string, len(rolePermissions))
	for role, list := range rolePermissions {
		cp := make([]string, len(list))
		copy(cp, list)
		perms[role] = cp
	}
	return &StaticRoleResolver{permissions: perms}
}

func (r *StaticRoleResolver) RolesAndPermissionsFor(_ context.Context, account *Account) ([]string, error) {
	seen := make(map[string]struct{}, len(account.Roles))
	claims := make([]string, 0, len(account.Roles))
	for _, role := range account.Roles {
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		claims = append(claims, role)
	}
	for _, role := range account.Roles {
		for _, perm := range r.permissions[role] {
			if _, dup := seen[perm]; dup {
				continue
			}
			seen[perm] = struct{}{}
			claims = append(claims, perm)
		}
	}
	return claims, nil
}

var _ RoleResolver = (*StaticRoleResolver)(nil)

package database

import (
	"fmt"

	"gorm.io/gorm"
)

// AddIndexes adds performance-critical indexes to the database
func AddIndexes(db *gorm.DB) error {
	indexes := []struct {
		table   string
		name    string
		columns string
	}{
		// Invitation lookups: pending-invite supersession check and listings
		{"invitations", "idx_invitations_organization_id", "organization_id"},
		{"invitations", "idx_invitations_status", "status"},
		{"invitations", "idx_invitations_expires_at", "expires_at"},
		{"invitations", "idx_invitations_created_at", "created_at"},

		// Organization members indexes
		{"organization_members", "idx_org_members_organization_id", "organization_id"},
		{"organization_members", "idx_org_members_user_id", "user_id"},

		// Team scoping
		{"teams", "idx_teams_organization_id", "organization_id"},
		{"team_members", "idx_team_members_team_id", "team_id"},
		{"team_members", "idx_team_members_user_id", "user_id"},

		// Organization slug lookup
		{"organizations", "idx_organizations_slug", "slug"},
	}

	for _, idx := range indexes {
		// Check if index already exists
		var count int64
		err := db.Raw(`
			SELECT COUNT(*)
			FROM pg_indexes
			WHERE tablename = ? AND indexname = ?
		`, idx.table, idx.name).Count(&count).Error

		if err != nil {
			return fmt.Errorf("failed to check index %s: %w", idx.name, err)
		}

		if count > 0 {
			fmt.Printf("Index %s already exists, skipping\n", idx.name)
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		fmt.Printf("Created index %s on %s(%s)\n", idx.name, idx.table, idx.columns)
	}

	return nil
}

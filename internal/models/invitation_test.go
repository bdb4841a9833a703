package models

import (
	"testing"
	"time"
)

func TestInvitationIsUsable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		invitation KoudenInvitation
		usable     bool
	}{
		{
			name: "active with uses left",
			invitation: KoudenInvitation{
				Status:    InvitationStatusActive,
				ExpiresAt: now.Add(24 * time.Hour),
				MaxUses:   3,
				UsedCount: 2,
			},
			usable: true,
		},
		{
			name: "revoked",
			invitation: KoudenInvitation{
				Status:    InvitationStatusRevoked,
				ExpiresAt: now.Add(24 * time.Hour),
				MaxUses:   3,
			},
			usable: false,
		},
		{
			name: "expired",
			invitation: KoudenInvitation{
				Status:    InvitationStatusActive,
				ExpiresAt: now.Add(-time.Minute),
				MaxUses:   3,
			},
			usable: false,
		},
		{
			name: "uses exhausted",
			invitation: KoudenInvitation{
				Status:    InvitationStatusActive,
				ExpiresAt: now.Add(24 * time.Hour),
				MaxUses:   2,
				UsedCount: 2,
			},
			usable: false,
		},
		{
			name: "unlimited uses",
			invitation: KoudenInvitation{
				Status:    InvitationStatusActive,
				ExpiresAt: now.Add(24 * time.Hour),
				MaxUses:   0,
				UsedCount: 100,
			},
			usable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.invitation.IsUsable(now); got != tt.usable {
				t.Errorf("IsUsable() = %v; want %v", got, tt.usable)
			}
		})
	}
}

func TestMemberRoleRank(t *testing.T) {
	if MemberRoleOwner.Rank() <= MemberRoleEditor.Rank() {
		t.Error("owner must outrank editor")
	}
	if MemberRoleEditor.Rank() <= MemberRoleViewer.Rank() {
		t.Error("editor must outrank viewer")
	}
	if MemberRole("bogus").Rank() != 0 {
		t.Error("unknown role must rank 0")
	}
}

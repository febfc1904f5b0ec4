package main

import (
	"testing"

	"github.com/spec-kit/intervention-service/internal/config"
	"github.com/spec-kit/intervention-service/internal/domain"
)

func TestParseRoles(t *testing.T) {
	roles, err := parseRoles([]string{"tecnico", " ADMIN "})
	if err != nil {
		t.Fatalf("parseRoles: %v", err)
	}
	if len(roles) != 2 || roles[0] != domain.RoleTechnician || roles[1] != domain.RoleAdmin {
		t.Errorf("roles = %v", roles)
	}
	if _, err := parseRoles([]string{"ROOT"}); err == nil {
		t.Errorf("unknown role accepted")
	}
}

func TestBodyLimit(t *testing.T) {
	if got := bodyLimit(config.StorageConfig{}); got != 4<<20 {
		t.Errorf("bodyLimit(empty) = %d", got)
	}
	if got := bodyLimit(config.StorageConfig{MaxUploadBytes: 10 << 20}); got != 50<<20 {
		t.Errorf("bodyLimit(10MB) = %d", got)
	}
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd().Commands() {
		names[cmd.Name()] = true
	}
	for _, expected := range []string{"serve", "migrate", "user", "client"} {
		if !names[expected] {
			t.Errorf("missing command %q", expected)
		}
	}
}

func TestFlagValueSkipsUnsetFlags(t *testing.T) {
	cmd := clientCreateCmd()
	if err := cmd.Flags().Parse([]string{"--code", "C001", "--phone", ""}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := flagValue(cmd, "contact", ""); got != nil {
		t.Errorf("contact = %q, expected nil", *got)
	}
	if got := flagValue(cmd, "phone", ""); got == nil || *got != "" {
		t.Errorf("phone = %v, expected empty string", got)
	}
}

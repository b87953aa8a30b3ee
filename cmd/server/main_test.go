package main

import (
	"testing"

	"liquorstock/backend/internal/config"
	"liquorstock/backend/internal/domain"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := map[string]config.Config{
		"short secret":    {AuthSecret: "short", AdminPass: "Str0ng-admin-pass"},
		"missing admin":   {AuthSecret: "0123456789abcdef0123456789abcdef"},
		"common password": {AuthSecret: "0123456789abcdef0123456789abcdef", AdminPass: "Password"},
		"repeated char":   {AuthSecret: "0123456789abcdef0123456789abcdef", AdminPass: "aaaaaaaaaa"},
		"weak owner":      {AuthSecret: "0123456789abcdef0123456789abcdef", AdminPass: "Str0ng-admin-pass", OwnerPass: "short"},
		"weak supervisor": {AuthSecret: "0123456789abcdef0123456789abcdef", AdminPass: "Str0ng-admin-pass", SupervisorPass: "12345678"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if err := validateSecurityConfig(cfg); err == nil {
				t.Fatalf("expected weak security config to be rejected")
			}
		})
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret: "0123456789abcdef0123456789abcdef",
		AdminPass:  "Str0ng-admin-pass",
		OwnerPass:  "owner-counts-9",
	})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestAccountsFromConfig(t *testing.T) {
	accounts := accountsFrom(config.Config{
		AdminUser:      "admin",
		OwnerUser:      "owner",
		SupervisorUser: "floor",
	})
	if len(accounts) != 3 {
		t.Fatalf("expected three accounts, got %d", len(accounts))
	}
	if accounts[2].Username != "floor" || accounts[2].Role != domain.RoleSupervisor {
		t.Fatalf("unexpected supervisor account %+v", accounts[2])
	}
}

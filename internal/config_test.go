package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestScannerConfig_WalkerConfig(t *testing.T) {
	cfg := ScannerConfig{
		MaxFileSizeKiB: 256,
		IgnoreDirs:     []string{"node_modules", "vendor"},
	}
	wc := cfg.WalkerConfig()
	if wc.MaxFileSize != 256<<10 {
		t.Errorf("MaxFileSize = %d, want %d", wc.MaxFileSize, 256<<10)
	}
	if len(wc.IgnoreDirs) != 2 || wc.IgnoreDirs[0] != "node_modules" {
		t.Errorf("IgnoreDirs = %v", wc.IgnoreDirs)
	}
}

func TestScannerConfig_ZeroMeansDefaults(t *testing.T) {
	cfg := ScannerConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero scanner config should pass: %v", err)
	}
	wc := cfg.WalkerConfig()
	if wc.MaxFileSize != 0 || wc.IgnoreDirs != nil {
		t.Errorf("zero config should convert to zero walker config, got %+v", wc)
	}
}

func TestScannerConfig_NegativeSize(t *testing.T) {
	cfg := ScannerConfig{MaxFileSizeKiB: -1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative max file size should fail validation")
	}
}

func TestJobsConfig_Validation(t *testing.T) {
	if err := (&JobsConfig{Workers: 0, QueueSize: 0}).Validate(); err != nil {
		t.Fatalf("zero jobs config should pass: %v", err)
	}
	if err := (&JobsConfig{Workers: -2}).Validate(); err == nil {
		t.Fatal("negative workers should fail validation")
	}
	if err := (&JobsConfig{QueueSize: -8}).Validate(); err == nil {
		t.Fatal("negative queue size should fail validation")
	}
}

func TestWorkspacesConfig_RootRequired(t *testing.T) {
	cfg := WorkspacesConfig{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty workspace root should fail validation")
	}
}

func TestHTTPConfig_Address(t *testing.T) {
	cfg := HTTPConfig{Port: 9090}
	if got := cfg.Address(); got != ":9090" {
		t.Errorf("Address() = %q, want %q", got, ":9090")
	}
}

func TestHTTPConfig_PortBounds(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := HTTPConfig{Port: port}
		if err := cfg.Validate(); err == nil {
			t.Errorf("port %d should fail validation", port)
		}
	}
}

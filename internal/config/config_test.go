package config

import "testing"

func TestDefaultUsesBridgeDefaultPort(t *testing.T) {
	cfg := Default()
	if cfg.BridgePort != 1337 {
		t.Fatalf("bridge port = %d, want 1337", cfg.BridgePort)
	}
}

func TestApplyEnvOverridesBridgePort(t *testing.T) {
	t.Setenv("DRPC_BRIDGE_PORT", "9999")
	cfg := Default().ApplyEnv()
	if cfg.BridgePort != 9999 {
		t.Fatalf("bridge port = %d, want 9999", cfg.BridgePort)
	}
}

func TestApplyEnvIgnoresInvalidPort(t *testing.T) {
	t.Setenv("DRPC_BRIDGE_PORT", "not-a-number")
	cfg := Default().ApplyEnv()
	if cfg.BridgePort != 1337 {
		t.Fatalf("bridge port = %d, want default 1337", cfg.BridgePort)
	}
}

func TestApplyEnvSetsNoProcessScanning(t *testing.T) {
	t.Setenv("DRPC_NO_PROCESS_SCANNING", "1")
	cfg := Default().ApplyEnv()
	if !cfg.NoProcessScanning {
		t.Fatal("expected NoProcessScanning true")
	}
}

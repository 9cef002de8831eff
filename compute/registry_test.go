package compute

import (
	"errors"
	"slices"
	"testing"
)

type stubBackend struct{ name string }

func (b stubBackend) Name() string                   { return b.name }
func (b stubBackend) Platforms() ([]Platform, error) { return nil, nil }

func stub(name string) BackendFactory {
	return func() Backend { return stubBackend{name: name} }
}

// withRegistry runs the test against an empty registry and restores the
// previous one afterwards.
func withRegistry(t *testing.T) {
	t.Helper()
	registryMu.Lock()
	saved := backends
	backends = make(map[string]BackendFactory)
	registryMu.Unlock()
	t.Cleanup(func() {
		registryMu.Lock()
		backends = saved
		registryMu.Unlock()
	})
}

func TestRegistryRegisterAndGet(t *testing.T) {
	withRegistry(t)
	Register("test", stub("test"))

	if !IsRegistered("test") {
		t.Error("test backend should be registered")
	}
	b, err := Get("test")
	if err != nil {
		t.Fatalf("Get(test) error = %v", err)
	}
	if b.Name() != "test" {
		t.Errorf("Get(test).Name() = %q, want %q", b.Name(), "test")
	}
}

func TestRegistryGetUnregistered(t *testing.T) {
	withRegistry(t)
	if _, err := Get("nonexistent"); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Get(nonexistent) error = %v, want ErrBackendNotAvailable", err)
	}

	Register("nil", func() Backend { return nil })
	if _, err := Get("nil"); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Get(nil factory) error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestRegistryAvailable(t *testing.T) {
	withRegistry(t)
	Register("b", stub("b"))
	Register("a", stub("a"))
	if got := Available(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Available() = %v, want [a b]", got)
	}
}

func TestRegistryUnregister(t *testing.T) {
	withRegistry(t)
	Register("test-backend", stub("test-backend"))
	Unregister("test-backend")
	if IsRegistered("test-backend") {
		t.Error("test-backend should be unregistered")
	}
}

func TestRegistryDefault(t *testing.T) {
	tests := []struct {
		name       string
		registered []string
		nilFactory string
		want       string
	}{
		{"gpu first", []string{BackendCPU, BackendWGPU, "zzz"}, "", BackendWGPU},
		{"cpu next", []string{BackendCPU, "zzz"}, "", BackendCPU},
		{"nil factory skipped", []string{BackendWGPU, BackendCPU}, BackendWGPU, BackendCPU},
		{"other sorted", []string{"zzz", "yyy"}, "", "yyy"},
		{"empty", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withRegistry(t)
			for _, name := range tt.registered {
				if name == tt.nilFactory {
					Register(name, func() Backend { return nil })
					continue
				}
				Register(name, stub(name))
			}

			b, err := Default()
			if tt.want == "" {
				if !errors.Is(err, ErrBackendNotAvailable) {
					t.Errorf("Default() error = %v, want ErrBackendNotAvailable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Default() error = %v", err)
			}
			if b.Name() != tt.want {
				t.Errorf("Default() = %q, want %q", b.Name(), tt.want)
			}
		})
	}
}

func TestDeviceType_String(t *testing.T) {
	tests := []struct {
		typ  DeviceType
		want string
	}{
		{DeviceTypeCPU, "cpu"},
		{DeviceTypeGPU, "gpu"},
		{DeviceTypeAccelerator, "accelerator"},
		{DeviceTypeOther, "other"},
		{DeviceTypeAll, "all"},
		{DeviceTypeCPU | DeviceTypeGPU, "DeviceType(3)"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", uint32(tt.typ), got, tt.want)
		}
	}
}

package bind_group_provider

import "testing"

func TestNewBindGroupProviderDefaultsToUnspecifiedIdentity(t *testing.T) {
	p := NewBindGroupProvider("test")
	if got := p.Identity(); got != ProviderIdentityUnspecified {
		t.Fatalf("Identity() = %q, want unspecified", got)
	}
}

func TestWithIdentitySetsProviderIdentity(t *testing.T) {
	p := NewBindGroupProvider("material-provider", WithIdentity(ProviderIdentityMaterial))
	if got, want := p.Identity(), ProviderIdentityMaterial; got != want {
		t.Fatalf("Identity() = %q, want %q", got, want)
	}
}

func TestApplyBufferWritesFailsOnUnboundBinding(t *testing.T) {
	p := NewBindGroupProvider("global-provider", WithIdentity(ProviderIdentityGlobal))

	writes := []BufferWrite{
		{Provider: p, Binding: 0, Offset: 0, Data: []byte{1, 2, 3, 4}},
	}

	// No buffer has been set at binding 0, so Apply must fail before ever
	// touching the (here nil, since no GPU device is available in a unit
	// test) *wgpu.Queue argument.
	if err := ApplyBufferWrites(nil, writes); err == nil {
		t.Fatal("expected ApplyBufferWrites to fail for a provider with no buffer at the targeted binding")
	}
}

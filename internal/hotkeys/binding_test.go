// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     hotkeys
// Description: Binding parser tests
// License:     MIT
// ============================================================================

package hotkeys

import (
	"reflect"
	"testing"
)

func TestParseBinding(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    Binding
		wantErr bool
	}{
		{
			name: "key with two modifiers",
			spec: "ctrl+shift+m",
			want: Binding{ID: BindingDictation, Kind: KindKey, Key: "m", Modifiers: []string{"ctrl", "shift"}},
		},
		{
			name: "alt space",
			spec: "alt+space",
			want: Binding{ID: BindingDictation, Kind: KindKey, Key: "space", Modifiers: []string{"alt"}},
		},
		{
			name: "bare function key",
			spec: "f5",
			want: Binding{ID: BindingDictation, Kind: KindKey, Key: "f5"},
		},
		{
			name: "modifier aliases normalized",
			spec: "Control+Option+Command+k",
			want: Binding{ID: BindingDictation, Kind: KindKey, Key: "k", Modifiers: []string{"ctrl", "alt", "cmd"}},
		},
		{
			name: "mouse button",
			spec: "mouse4",
			want: Binding{ID: BindingDictation, Kind: KindMouse, MouseButton: 4},
		},
		{
			name: "mouse button with modifier",
			spec: "ctrl+mouse5",
			want: Binding{ID: BindingDictation, Kind: KindMouse, MouseButton: 5, Modifiers: []string{"ctrl"}},
		},
		{name: "empty spec", spec: "", wantErr: true},
		{name: "unknown modifier", spec: "hyper+m", wantErr: true},
		{name: "invalid mouse button", spec: "mousex", wantErr: true},
		{name: "trailing plus", spec: "ctrl+", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBinding(BindingDictation, tt.spec, PushToTalk)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseBinding(%q) expected error, got %+v", tt.spec, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBinding(%q) unexpected error: %v", tt.spec, err)
			}
			tt.want.Mode = PushToTalk
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseBinding(%q) = %+v, want %+v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestBindingString(t *testing.T) {
	b, err := ParseBinding(BindingCommand, "ctrl+shift+m", Toggle)
	if err != nil {
		t.Fatalf("ParseBinding failed: %v", err)
	}
	if got := b.String(); got != "ctrl+shift+m" {
		t.Errorf("String() = %q, want %q", got, "ctrl+shift+m")
	}

	m, err := ParseBinding(BindingDictation, "mouse4", PushToTalk)
	if err != nil {
		t.Fatalf("ParseBinding failed: %v", err)
	}
	if got := m.String(); got != "mouse4" {
		t.Errorf("String() = %q, want %q", got, "mouse4")
	}
}

func TestModeString(t *testing.T) {
	if PushToTalk.String() != "push-to-talk" {
		t.Errorf("PushToTalk.String() = %q", PushToTalk.String())
	}
	if Toggle.String() != "toggle" {
		t.Errorf("Toggle.String() = %q", Toggle.String())
	}
}

func TestMapKeyUnsupported(t *testing.T) {
	if _, err := mapKey("volumedown"); err == nil {
		t.Error("mapKey(volumedown) expected error")
	}
	if _, err := mapKey("m"); err != nil {
		t.Errorf("mapKey(m) unexpected error: %v", err)
	}
}

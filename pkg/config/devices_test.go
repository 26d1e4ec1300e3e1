package config

import (
	"errors"
	"testing"

	"github.com/marmos91/dittoraid/internal/bytesize"
	"github.com/marmos91/dittoraid/pkg/raid"
)

func TestParseDevices(t *testing.T) {
	specs, err := ParseDevices([]string{"/dev/sdb", "+/dev/sdc", "/dev/sdd"})
	if err != nil {
		t.Fatalf("ParseDevices failed: %v", err)
	}

	want := []raid.SlotSpec{
		{Path: "/dev/sdb", State: raid.SlotLive},
		{Path: "/dev/sdc", State: raid.SlotRebuilding},
		{Path: "/dev/sdd", State: raid.SlotLive},
	}
	for i := range want {
		if specs[i] != want[i] {
			t.Errorf("slot %d: expected %+v, got %+v", i, want[i], specs[i])
		}
	}

	if got := FormatDevices(specs); got[1] != "+/dev/sdc" {
		t.Errorf("Expected FormatDevices to restore the marker, got %v", got)
	}
}

func TestParseDevices_Missing(t *testing.T) {
	specs, err := ParseDevices([]string{"a", "MISSING", "c"})
	if err != nil {
		t.Fatalf("ParseDevices failed: %v", err)
	}
	if specs[1].State != raid.SlotMissing {
		t.Errorf("Expected slot 1 missing, got %v", specs[1].State)
	}
}

func TestParseDevices_Errors(t *testing.T) {
	tests := []struct {
		name    string
		devices []string
	}{
		{"TwoMissing", []string{"MISSING", "b", "MISSING"}},
		{"TwoRebuild", []string{"+a", "+b", "c"}},
		{"MissingAndRebuild", []string{"MISSING", "+b", "c"}},
		{"EmptyRebuild", []string{"+", "b", "c"}},
		{"RebuildMissing", []string{"+MISSING", "b", "c"}},
		{"EmptyPath", []string{"a", "", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDevices(tt.devices)
			if !errors.Is(err, raid.ErrConfig) {
				t.Errorf("Expected config error, got %v", err)
			}
		})
	}
}

func TestArrayConfigResolve(t *testing.T) {
	base := ArrayConfig{
		Level:     4,
		BlockSize: 4 * bytesize.KiB,
		Target:    "/dev/nbd0",
		Devices:   []string{"a", "b", "c"},
	}

	spec, err := base.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if spec.Layout.Level != raid.LevelParity || spec.Layout.BlockSize != 4096 || spec.Layout.Devices != 3 {
		t.Errorf("Unexpected layout: %+v", spec.Layout)
	}
	if spec.Target != "/dev/nbd0" {
		t.Errorf("Expected target to carry over, got %q", spec.Target)
	}
	if _, ok := spec.Rebuild(); ok {
		t.Error("Expected no rebuild slot")
	}

	rebuild := base
	rebuild.Devices = []string{"a", "b", "+c"}
	spec, err = rebuild.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if idx, ok := spec.Rebuild(); !ok || idx != 2 {
		t.Errorf("Expected rebuild slot 2, got %d %v", idx, ok)
	}
}

func TestArrayConfigResolve_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  ArrayConfig
	}{
		{"BadLevel", ArrayConfig{Level: 1, BlockSize: 512, Devices: []string{"a", "b"}}},
		{"ZeroBlockSize", ArrayConfig{Level: 4, Devices: []string{"a", "b"}}},
		{"NoDevices", ArrayConfig{Level: 4, BlockSize: 512}},
		{"OneDevice", ArrayConfig{Level: 4, BlockSize: 512, Devices: []string{"a"}}},
		{"StripeThreeDevices", ArrayConfig{Level: 0, BlockSize: 512, Devices: []string{"a", "b", "c"}}},
		{"InitWithMissing", ArrayConfig{Level: 4, BlockSize: 512, Devices: []string{"a", "MISSING", "c"}, Init: true}},
		{"StripeRebuild", ArrayConfig{Level: 0, BlockSize: 512, Devices: []string{"a", "+b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Resolve()
			if !raid.IsConfigError(err) {
				t.Errorf("Expected config error, got %v", err)
			}
		})
	}
}

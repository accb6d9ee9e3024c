package main

import (
	"strings"
	"testing"

	"github.com/gwillem/orbo/pkg/robot"
	"github.com/gwillem/orbo/pkg/servo"
)

func TestKeyCommand(t *testing.T) {
	m := teleopModel{degree: 30, speedStep: 5}

	tests := []struct {
		key      string
		expected string
	}{
		{"a", "balance-left 30"},
		{"d", "balance-right 30"},
		{"h", "home"},
		{"up", "drive forward"},
		{"left", "drive left"},
		{" ", "stop-foot"},
		{"z", "rotate-foot left clockwise"},
		{"v", "rotate-foot right anticlockwise"},
		{"m", "mode drive"},
		{"+", "speed-by 5"},
		{"=", "speed-by 5"},
		{"-", "speed-by -5"},
	}

	for _, tt := range tests {
		cmd, ok := m.keyCommand(tt.key)
		if !ok {
			t.Errorf("keyCommand(%q) not mapped", tt.key)
			continue
		}
		if got := cmd.String(); got != tt.expected {
			t.Errorf("keyCommand(%q) = %q, want %q", tt.key, got, tt.expected)
		}
	}

	if _, ok := m.keyCommand("k"); ok {
		t.Error("keyCommand(k) should not be mapped")
	}
}

func TestRenderWrites(t *testing.T) {
	out := renderWrites([]servo.Write{{Channel: 2, Angle: 110}}, robot.NewCalibration(0, 1, 2, 3))

	for _, want := range []string{"Joint", "right_leg", "110"} {
		if !strings.Contains(out, want) {
			t.Errorf("renderWrites output missing %q:\n%s", want, out)
		}
	}
}

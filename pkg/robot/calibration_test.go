package robot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gwillem/orbo/pkg/servo"
)

func TestJointCalibration_AttachConfig(t *testing.T) {
	cal := NewCalibration(4, 5, 6, 7)

	tests := []struct {
		joint      Joint
		pulse      servo.PulseRange
		continuous bool
	}{
		{LeftLeg, LegPulseRange, false},
		{RightLeg, LegPulseRange, false},
		{LeftFoot, servo.PulseRange{}, true}, // driver default
		{RightFoot, servo.PulseRange{}, true},
	}

	for _, tt := range tests {
		got := cal[tt.joint].AttachConfig(tt.joint)
		if got.Pulse != tt.pulse || got.Continuous != tt.continuous {
			t.Errorf("AttachConfig(%s) = %+v, want pulse %+v continuous %v", tt.joint, got, tt.pulse, tt.continuous)
		}
	}

	// A leg without a pulse range still gets the extended one.
	bare := JointCalibration{Channel: 1}
	if got := bare.AttachConfig(LeftLeg).Pulse; got != LegPulseRange {
		t.Errorf("bare leg pulse = %+v, want %+v", got, LegPulseRange)
	}
}

func TestCalibration_Channels(t *testing.T) {
	cal := NewCalibration(8, 9, 10, 11)

	channels := cal.Channels()
	expected := []int{8, 9, 10, 11}

	if len(channels) != len(expected) {
		t.Fatalf("Channels returned %d channels, want %d", len(channels), len(expected))
	}

	for i, ch := range channels {
		if ch != expected[i] {
			t.Errorf("Channels()[%d] = %d, want %d", i, ch, expected[i])
		}
	}
}

func TestCalibration_ByChannel(t *testing.T) {
	cal := NewCalibration(0, 1, 2, 3)

	joint, jc, ok := cal.ByChannel(2)
	if !ok {
		t.Fatal("ByChannel(2) returned false")
	}
	if joint != RightLeg {
		t.Errorf("ByChannel(2) returned joint %s, want right_leg", joint)
	}
	if jc.MinUs != 120 {
		t.Errorf("ByChannel(2) returned wrong calibration: %+v", jc)
	}

	_, _, ok = cal.ByChannel(99)
	if ok {
		t.Error("ByChannel(99) should return false")
	}
}

func TestCalibration_Validate(t *testing.T) {
	tests := []struct {
		name string
		cal  Calibration
		err  string
	}{
		{"valid", NewCalibration(0, 1, 2, 3), ""},
		{"shared channel", NewCalibration(0, 1, 1, 3), "share channel 1"},
		{"missing joint", Calibration{LeftLeg: {Channel: 0}}, "missing left_foot"},
		{"inverted range", Calibration{
			LeftLeg:   {Channel: 0, MinUs: 2400, MaxUs: 120},
			LeftFoot:  {Channel: 1},
			RightLeg:  {Channel: 2},
			RightFoot: {Channel: 3},
		}, "inverted"},
	}

	for _, tt := range tests {
		err := tt.cal.Validate()
		if tt.err == "" {
			if err != nil {
				t.Errorf("%s: Validate() = %v, want nil", tt.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tt.err) {
			t.Errorf("%s: Validate() = %v, want error containing %q", tt.name, err, tt.err)
		}
	}
}

func TestConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orbo.yaml")

	cfg := DefaultConfig()
	cfg.Driver = DriverFeetech
	cfg.SerialPort = "/dev/ttyUSB0"
	cfg.Servos = NewCalibration(1, 2, 3, 4)
	cfg.RotationSpeed = 40

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	got, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom: %v", err)
	}
	if got.Driver != DriverFeetech || got.SerialPort != "/dev/ttyUSB0" || got.RotationSpeed != 40 {
		t.Errorf("LoadConfigFrom = %+v", got)
	}
	if got.Servos[RightFoot].Channel != 4 {
		t.Errorf("right foot channel = %d, want 4", got.Servos[RightFoot].Channel)
	}
}

func TestLoadConfigFrom_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orbo.yaml")
	if err := os.WriteFile(path, []byte("driver: dry-run\nrotation_speed: 30\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom: %v", err)
	}
	if cfg.Driver != DriverDryRun {
		t.Errorf("Driver = %q, want dry-run", cfg.Driver)
	}
	if cfg.RotationSpeed != 30 {
		t.Errorf("RotationSpeed = %d, want 30", cfg.RotationSpeed)
	}
	if cfg.ReturnHomeDelayMs != 3 {
		t.Errorf("ReturnHomeDelayMs = %d, want 3", cfg.ReturnHomeDelayMs)
	}
	if cfg.I2CAddress != 0x40 {
		t.Errorf("I2CAddress = %#x, want 0x40", cfg.I2CAddress)
	}
	if len(cfg.Servos) != 4 {
		t.Errorf("Servos = %v, want 4 joints", cfg.Servos)
	}
}

func TestConfig_OpenDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Driver = DriverDryRun

	drv, err := cfg.OpenDriver(nil)
	if err != nil {
		t.Fatalf("OpenDriver: %v", err)
	}
	if _, ok := drv.(*servo.Recorder); !ok {
		t.Errorf("OpenDriver returned %T, want *servo.Recorder", drv)
	}

	cfg.Driver = "stepper"
	if _, err := cfg.OpenDriver(nil); err == nil {
		t.Error("OpenDriver(stepper) should fail")
	}
}

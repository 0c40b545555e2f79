package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/relabs-tech/mag_survey/internal/bmm350"
	"github.com/relabs-tech/mag_survey/internal/mag"
	"github.com/relabs-tech/mag_survey/internal/stats"
)

// fakeDevice replays a fixed set of readings and records the power mode
// commands it receives.
type fakeDevice struct {
	readings []bmm350.Data
	next     int
	modeCmds []bmm350.PowerMode
}

func (f *fakeDevice) SetPowerMode(m bmm350.PowerMode) error {
	f.modeCmds = append(f.modeCmds, m)
	return nil
}

func (f *fakeDevice) SetODRPerformance(bmm350.ODR, bmm350.Averaging) error {
	return nil
}

func (f *fakeDevice) Read() (bmm350.Data, error) {
	d := f.readings[f.next%len(f.readings)]
	f.next++
	return d, nil
}

func TestCollectBatch(t *testing.T) {
	dev := &fakeDevice{readings: []bmm350.Data{
		{X: 20.0, Y: 1.0, Z: -44.0, Temperature: 24.0},
		{X: 20.2, Y: 1.1, Z: -44.1, Temperature: 24.0},
	}}
	combo := combination{mode: bmm350.PowerModeForcedFast, avg: bmm350.Avg4, batch: true}

	var out bytes.Buffer
	batch, err := collectBatch(dev, &out, combo, 10)
	if err != nil {
		t.Fatalf("collectBatch failed: %v", err)
	}

	if len(batch) != 10 {
		t.Errorf("batch length = %d, want 10", len(batch))
	}
	// One power mode command per read: forced mode is re-armed each time.
	if len(dev.modeCmds) != 10 {
		t.Errorf("power mode commands = %d, want 10", len(dev.modeCmds))
	}
	for _, m := range dev.modeCmds {
		if m != bmm350.PowerModeForcedFast {
			t.Fatalf("unexpected power mode command 0x%02X", byte(m))
		}
	}
	if batch[0].X != 20.0 || batch[1].X != 20.2 {
		t.Errorf("batch order not preserved: %+v", batch[:2])
	}

	// 10 rows plus the header line.
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 11 {
		t.Errorf("printed %d lines, want 11:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "Timestamp(ms)") {
		t.Errorf("missing header, got %q", lines[0])
	}
}

func TestCollectBatchFeedsNoise(t *testing.T) {
	// Alternating readings {1, 3} on X produce the known noise figure
	// of 1000 nT RMS after mean removal.
	dev := &fakeDevice{readings: []bmm350.Data{
		{X: 1.0}, {X: 3.0},
	}}
	combo := combination{mode: bmm350.PowerModeForced, batch: true}

	var out bytes.Buffer
	batch, err := collectBatch(dev, &out, combo, 100)
	if err != nil {
		t.Fatalf("collectBatch failed: %v", err)
	}

	mean, err := stats.Mean(batch)
	if err != nil {
		t.Fatalf("Mean failed: %v", err)
	}
	if mean.X != 2.0 {
		t.Errorf("mean X = %v, want 2", mean.X)
	}

	noise, err := stats.Noise(batch, mean)
	if err != nil {
		t.Fatalf("Noise failed: %v", err)
	}
	if noise.X != 1000.0 {
		t.Errorf("noise X = %v, want 1000", noise.X)
	}
}

func TestRunReadoutModeOnce(t *testing.T) {
	dev := &fakeDevice{readings: []bmm350.Data{{X: 1.0}}}
	combo := combination{mode: bmm350.PowerModeForcedFast, modeOnce: true}

	var out bytes.Buffer
	if err := runReadout(dev, &out, combo, readoutCount); err != nil {
		t.Fatalf("runReadout failed: %v", err)
	}

	// modeOnce arms the power mode a single time before the loop.
	if len(dev.modeCmds) != 1 {
		t.Errorf("power mode commands = %d, want 1", len(dev.modeCmds))
	}
	if dev.next != readoutCount {
		t.Errorf("reads = %d, want %d", dev.next, readoutCount)
	}
}

func TestSurveyCombinations(t *testing.T) {
	if len(surveyCombinations) != 6 {
		t.Fatalf("combinations = %d, want 6", len(surveyCombinations))
	}
	// Only the first combination sets the power mode outside the loop,
	// and only the last three collect full batches.
	for i, c := range surveyCombinations {
		if c.modeOnce != (i == 0) {
			t.Errorf("combination %d modeOnce = %v", i+1, c.modeOnce)
		}
		if c.batch != (i >= 3) {
			t.Errorf("combination %d batch = %v", i+1, c.batch)
		}
	}
	if surveyCombinations[5].avg != bmm350.Avg2 {
		t.Errorf("combination 6 averaging = %v, want Avg2", surveyCombinations[5].avg)
	}
}

func TestPrintNoiseFormat(t *testing.T) {
	var out bytes.Buffer
	printNoise(&out, mag.Vector{X: 1000, Y: 2000, Z: 3000})

	got := out.String()
	if !strings.Contains(got, "Noise level x (nTrms), Noise level y (nTrms), Noise level z (nTrms)") {
		t.Errorf("missing noise header:\n%s", got)
	}
	if !strings.Contains(got, "1000.000000, 2000.000000, 3000.000000") {
		t.Errorf("missing noise values:\n%s", got)
	}
}

func TestODRAndAveragingMapping(t *testing.T) {
	if odrFromHz(400) != bmm350.ODR400Hz || odrFromHz(12) != bmm350.ODR12_5Hz {
		t.Error("odrFromHz mapping broken")
	}
	if odrFromHz(0) != bmm350.ODR100Hz {
		t.Error("odrFromHz default must be 100 Hz")
	}
	if avgFromCount(8) != bmm350.Avg8 || avgFromCount(1) != bmm350.AvgNone || avgFromCount(0) != bmm350.AvgNone {
		t.Error("avgFromCount mapping broken")
	}
}

package robot

import (
	"context"
	"errors"
	"testing"
)

func TestDryRunDriver(t *testing.T) {
	ctx := context.Background()
	d := NewDryRunDriver(nil)

	if err := d.SetPosition(ctx, 3, 0, 2100); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	if err := d.SetPosition(ctx, 3, 0, 2200); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	if got := d.Positions()[3]; got != 2200 {
		t.Errorf("Positions()[3] = %d, want 2200", got)
	}

	if err := d.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !d.Stopped() {
		t.Error("Stopped() = false after Stop")
	}
	if err := d.SetPosition(ctx, 3, 0, 2300); !errors.Is(err, ErrStopped) {
		t.Errorf("SetPosition after Stop = %v, want ErrStopped", err)
	}
}

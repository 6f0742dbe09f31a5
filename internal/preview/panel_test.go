package preview

import (
	"image"
	"sync/atomic"
	"testing"
	"time"
)

func TestCloseFiresExactlyOnce(t *testing.T) {
	var closed int32
	var gotID string
	p := NewPanel("0x1a2b", "EVE - Pilot One", Callbacks{
		Closed: func(id string) {
			atomic.AddInt32(&closed, 1)
			gotID = id
		},
	})

	p.Close()
	p.Close()
	p.Close()

	if n := atomic.LoadInt32(&closed); n != 1 {
		t.Fatalf("closed callback fired %d times, want 1", n)
	}
	if gotID != "0x1a2b" {
		t.Errorf("closed callback got id %q", gotID)
	}
}

func TestCloseStopsRefreshClock(t *testing.T) {
	var ticks int32
	p := NewPanel("0x1", "w", Callbacks{
		Refresh: func(*Panel) { atomic.AddInt32(&ticks, 1) },
	})
	p.Start(60)
	p.Close()

	if p.Running() {
		t.Fatal("panel still running after Close")
	}
	after := atomic.LoadInt32(&ticks)
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&ticks); got != after {
		t.Errorf("refresh fired after Close: %d -> %d", after, got)
	}
}

func TestRefreshTicks(t *testing.T) {
	tick := make(chan struct{}, 16)
	p := NewPanel("0x1", "w", Callbacks{
		Refresh: func(*Panel) {
			select {
			case tick <- struct{}{}:
			default:
			}
		},
	})
	p.Start(60)
	defer p.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-tick:
		case <-time.After(time.Second):
			t.Fatalf("no refresh tick %d within a second", i+1)
		}
	}
}

func TestStartIsIdempotent(t *testing.T) {
	p := NewPanel("0x1", "w", Callbacks{})
	p.Start(30)
	defer p.Stop()
	interval := p.RefreshInterval()

	p.Start(1)
	if p.RefreshInterval() != interval {
		t.Error("second Start changed the interval of a running panel")
	}
}

func TestSetRefreshRateClamps(t *testing.T) {
	p := NewPanel("0x1", "w", Callbacks{})

	p.SetRefreshRate(0)
	if got := p.RefreshInterval(); got != time.Second {
		t.Errorf("fps 0 -> interval %v, want 1s", got)
	}
	p.SetRefreshRate(1000)
	if got := p.RefreshInterval(); got != time.Second/60 {
		t.Errorf("fps 1000 -> interval %v, want %v", got, time.Second/60)
	}
}

func TestSetGeometryNotifies(t *testing.T) {
	var got Geometry
	p := NewPanel("0x1", "w", Callbacks{
		GeometryChanged: func(p *Panel) { got = p.Geometry() },
	})

	want := Geometry{X: 10, Y: 20, Width: 320, Height: 240}
	p.SetGeometry(want)
	if got != want {
		t.Errorf("geometry callback saw %+v, want %+v", got, want)
	}
}

func TestScaleClamped(t *testing.T) {
	p := NewPanel("0x1", "w", Callbacks{})
	p.SetScale(3.0)
	if p.Scale() != 1.0 {
		t.Errorf("scale 3.0 stored as %v, want 1.0", p.Scale())
	}
	p.SetScale(0.01)
	if p.Scale() != 0.1 {
		t.Errorf("scale 0.01 stored as %v, want 0.1", p.Scale())
	}
}

func TestFrameRoundTrip(t *testing.T) {
	p := NewPanel("0x1", "w", Callbacks{})
	if p.Frame() != nil {
		t.Fatal("fresh panel should have no frame")
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	p.SetFrame(img)
	if p.Frame() != img {
		t.Error("Frame did not return the stored image")
	}
}

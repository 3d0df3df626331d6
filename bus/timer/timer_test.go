package timer_test

import (
	"testing"
	"time"

	"github.com/arfaz/opbus/bus/timer"
)

func TestFiresAtDeadline(t *testing.T) {
	gt := timer.New()
	start := time.Now()
	fire := gt.NewTimeout(start.Add(30 * time.Millisecond))

	select {
	case <-fire:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	if time.Since(start) < 25*time.Millisecond {
		t.Fatal("timer fired too early")
	}
}

func TestReArmingCancelsThePriorDeadline(t *testing.T) {
	gt := timer.New()
	first := gt.NewTimeout(time.Now().Add(time.Hour))
	second := gt.NewTimeout(time.Now().Add(20 * time.Millisecond))

	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("re-arming should have cancelled (and thus completed) the first deadline")
	}

	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("second deadline never fired")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	gt := timer.New()
	gt.Cancel()
	fire := gt.NewTimeout(time.Now().Add(time.Hour))
	gt.Cancel()
	gt.Cancel()

	select {
	case <-fire:
	case <-time.After(time.Second):
		t.Fatal("cancel should have completed the armed deadline")
	}
}

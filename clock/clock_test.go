package clock

import (
	"reflect"
	"testing"
	"time"
)

func TestFakeFiresInOrder(t *testing.T) {
	c := NewFake()
	var got []string
	c.AfterFunc(20*time.Millisecond, func() { got = append(got, "b") })
	c.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	c.AfterFunc(20*time.Millisecond, func() { got = append(got, "c") })
	c.AfterFunc(50*time.Millisecond, func() { got = append(got, "late") })

	c.Advance(30 * time.Millisecond)

	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("fired %v, want %v", got, want)
	}
	if c.Now() != 30*time.Millisecond {
		t.Errorf("Now = %v, want 30ms", c.Now())
	}
	if c.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", c.Pending())
	}
}

func TestFakeStop(t *testing.T) {
	c := NewFake()
	fired := false
	tm := c.AfterFunc(time.Millisecond, func() { fired = true })
	if !tm.Stop() {
		t.Error("Stop on pending timer returned false")
	}
	c.Advance(time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
	if tm.Stop() {
		t.Error("second Stop returned true")
	}
}

func TestFakeCallbackSeesDueTime(t *testing.T) {
	c := NewFake()
	var at time.Duration
	c.AfterFunc(15*time.Millisecond, func() { at = c.Now() })
	c.Advance(100 * time.Millisecond)
	if at != 15*time.Millisecond {
		t.Errorf("callback saw %v, want 15ms", at)
	}
}

func TestFakeNestedScheduling(t *testing.T) {
	c := NewFake()
	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(10*time.Millisecond, tick)
	}
	c.AfterFunc(0, tick)
	c.Advance(35 * time.Millisecond)
	// fires at 0, 10, 20, 30
	if count != 4 {
		t.Errorf("count = %d, want 4", count)
	}
}

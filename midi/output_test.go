package midi

import (
	"errors"
	"reflect"
	"testing"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"beatgrid/clock"
)

type sent struct {
	at  time.Duration
	msg string
}

func TestOutputSchedulesNotes(t *testing.T) {
	clk := clock.NewFake()
	out := NewOutput("test", clk, []uint8{36, 38}, 40*time.Millisecond)
	var got []sent
	out.SetSender(func(m gomidi.Message) error {
		got = append(got, sent{clk.Now(), m.String()})
		return nil
	})

	out.Trigger(1, 100*time.Millisecond, 1.0)
	out.Trigger(0, 0, 0) // silent
	clk.Advance(time.Second)

	want := []sent{
		{100 * time.Millisecond, gomidi.NoteOn(DrumChannel, 38, 127).String()},
		{140 * time.Millisecond, gomidi.NoteOff(DrumChannel, 38).String()},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sent %v, want %v", got, want)
	}
}

func TestOutputLateTriggerFiresNow(t *testing.T) {
	clk := clock.NewFake()
	clk.Advance(time.Second)
	out := NewOutput("test", clk, nil, 0)
	var ons int
	out.SetSender(func(m gomidi.Message) error {
		var ch, key, vel uint8
		if m.GetNoteStart(&ch, &key, &vel) {
			ons++
			if key != DefaultNote || vel != 76 {
				t.Errorf("key=%d vel=%d", key, vel)
			}
		}
		return nil
	})
	out.Trigger(4, 500*time.Millisecond, 0.6)
	clk.Advance(0)
	if ons != 1 {
		t.Errorf("note ons = %d, want 1", ons)
	}
}

func TestOutputSendErrorIsNotFatal(t *testing.T) {
	clk := clock.NewFake()
	out := NewOutput("test", clk, []uint8{36}, 10*time.Millisecond)
	calls := 0
	out.SetSender(func(gomidi.Message) error {
		calls++
		return errors.New("port gone")
	})
	out.Trigger(0, 0, 1)
	out.Trigger(0, 20*time.Millisecond, 1)
	clk.Advance(time.Second)
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
	if err := out.Close(); err != nil {
		t.Error(err)
	}
}

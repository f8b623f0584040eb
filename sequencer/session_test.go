package sequencer

import (
	"reflect"
	"testing"
)

func TestSessionSubscribersSeeEveryPublish(t *testing.T) {
	sess := NewSession(NewState(testChannels, 16))

	var first, second []int
	sess.Subscribe(func(st *State) { first = append(first, st.Tempo) })
	sess.Update(func(st *State) { st.Tempo = 100 })
	sess.Subscribe(func(st *State) { second = append(second, st.Tempo) })
	sess.Update(func(st *State) { st.Tempo = 110 })
	sess.Replace(NewState(testChannels, 16))

	if want := []int{100, 110, 120}; !reflect.DeepEqual(first, want) {
		t.Errorf("first subscriber saw %v, want %v", first, want)
	}
	if want := []int{110, 120}; !reflect.DeepEqual(second, want) {
		t.Errorf("second subscriber saw %v, want %v", second, want)
	}
}

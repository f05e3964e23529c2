package status

import "testing"

type memorySink struct {
	progress []string
	terminal []string
}

func (s *memorySink) Progress(msg string) { s.progress = append(s.progress, msg) }
func (s *memorySink) Terminal(msg string) { s.terminal = append(s.terminal, msg) }

func TestMulti_FansOut(t *testing.T) {
	a := &memorySink{}
	b := &memorySink{}
	m := Multi(a, b)

	m.Progress("processing row 1 of 2")
	m.Terminal("run complete")

	for name, s := range map[string]*memorySink{"first": a, "second": b} {
		if len(s.progress) != 1 || s.progress[0] != "processing row 1 of 2" {
			t.Errorf("%s sink progress = %v", name, s.progress)
		}
		if len(s.terminal) != 1 || s.terminal[0] != "run complete" {
			t.Errorf("%s sink terminal = %v", name, s.terminal)
		}
	}
}

func TestMulti_Empty(t *testing.T) {
	m := Multi()
	m.Progress("nobody listening")
	m.Terminal("still fine")
}

package main

type table struct {
	ops map[string]func()
	ch  chan func()
}

func run() {}

func main() {
	t := table{ops: map[string]func(){}, ch: make(chan func(), 1)}
	t.ops["run"] = run
	fns := []func(){run}
	more := make([]func(), 1)
	copy(more, fns)
	fns = append(fns, more...)
	t.ch <- fns[0]
	f, ok := t.ops["run"]
	if ok {
		f()
	}
	g := <-t.ch
	g()
	s := "crd" + string(rune(len(fns)))
	for i, c := range s {
		println(i, c)
	}
}

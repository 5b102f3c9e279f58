package main

type Handler interface {
	Handle(int) int
}

type double struct {
	factor int
}

func (d *double) Handle(x int) int { return x * d.factor }

type offset int

func (o offset) Handle(x int) int { return x + int(o) }

var callback func(int) int

func register(f func(int) int) {
	callback = f
}

//crd:ignore
func opaque(x int) int { return x }

func main() {
	k := 3
	register(func(x int) int { return x + k })
	var h Handler = &double{factor: 2}
	if len(callback2()) > 0 {
		h = offset(1)
	}
	println(h.Handle(callback(opaque(1))))
}

func callback2() []string { return nil }

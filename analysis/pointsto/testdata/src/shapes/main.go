package main

type Shape interface {
	Area() int
}

type square int

func (s square) Area() int { return int(s) * int(s) }

func main() {
	var s Shape = square(2)
	println(s.Area())
}

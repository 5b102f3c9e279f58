package main

import "os"

var handlers [2]func(int) int

func inc(x int) int { return x + 1 }

func dec(x int) int { return x - 1 }

func choose(n int) func(int) int {
	f := handlers[1] // @CRD
	if n > 0 {       // @CRD
		f = handlers[0] // @CRD
	}
	return f // @CRD
}

func main() {
	handlers[0] = inc // @CRD
	handlers[1] = dec // @CRD
	n := len(os.Args) // @CRD
	f := choose(n)    // @CRD
	total := n * 2    // @Safe
	println(f(total))
}

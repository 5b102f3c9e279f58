package main

import "os"

func hook() {}

func pick(c bool) *func() {
	a := new(func())
	b := new(func())
	*a = hook
	*b = hook
	if c {
		return a
	}
	return b
}

func main() {
	p := pick(len(os.Args) > 1)
	(*p)()
}

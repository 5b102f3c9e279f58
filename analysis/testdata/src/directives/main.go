package main

func handler() {}

//crd:ignore
func unsafeCopy(dst, src []byte) int {
	return copy(dst, src)
}

// crd:unknown
func other() {}

func main() {
	buf := make([]byte, 4)
	unsafeCopy(buf, []byte("go"))
	handler()
	other()
}

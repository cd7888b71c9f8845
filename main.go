package main

import "kprep/internal/kprep"

func main() {
	kprep.Main()
}

package main

import (
	_ "net/http/pprof"
)

// TODO:
// - load test the enrollment endpoints under contention
func main() {
	startWithDig()
}

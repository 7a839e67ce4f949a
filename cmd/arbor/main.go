// Command arbor inspects anchor stores, serves engines over HTTP and runs the
// reference traversal.
package main

func main() {
	Execute()
}

// Package main is the entry point for apistub.
package main

func main() {
	Execute()
}

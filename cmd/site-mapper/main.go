// Package main provides the site-mapper CLI.
package main

func main() {
	Execute()
}

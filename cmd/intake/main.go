// Package main is the entry point for intake, a typed request-validation
// and dispatch server driven by YAML route and schema manifests.
package main

func main() {
	Execute()
}

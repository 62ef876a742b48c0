package main

import "fmt"

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0" ./cmd/flowgraph/
var version = "dev"

// VersionCmd prints the build version.
type VersionCmd struct{}

func (VersionCmd) Run(rt *app) error {
	_, err := fmt.Fprintln(rt.stdout, version)
	return err
}

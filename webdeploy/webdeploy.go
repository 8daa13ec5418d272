package main

import "github.com/oshokin/webdeploy/cmd/webdeploy/cmd"

func main() {
	cmd.Execute()
}

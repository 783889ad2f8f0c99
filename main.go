package main

import "github.com/kozaktomas/faceprints/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/biihlive/authcodes/cmd/authcodesctl/cmd"

func main() {
	cmd.Execute()
}

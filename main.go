package main

import "github.com/vkuzmyk/mdlate/cmd"

func main() {
	cmd.Execute()
}

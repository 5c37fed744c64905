package main

import "github.com/chenyuwen/myf2fs/cmd"

func main() {
	cmd.Execute()
}

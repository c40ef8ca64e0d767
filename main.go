package main

import "github.com/evermart/cart/cmd"

func main() {
	cmd.Start()
}

package main

import "github.com/ValentinKolb/tabkv/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/ValentinKolb/dCol/cmd"

func main() {
	cmd.Execute()
}

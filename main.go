package main

import (
	"log"

	"exhibition-system/cmd"
	_ "exhibition-system/migrations"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}

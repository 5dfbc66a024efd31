package main

import (
	"log"

	"github.com/ProfMYK/chatappapi/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}

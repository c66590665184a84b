package main

import (
	"log"

	"luna/internal/transport/http"
)

func main() {
	if err := http.Run(); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

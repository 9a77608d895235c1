package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/S-troup10/westBasketball/libs/admintoken"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// gen_token prints the bearer token the API issues for a password and secret,
// for scripting content uploads without calling /api/login.
func main() {
	password := flag.String("password", envOr("ADMIN_PASSWORD", "west123"), "admin password")
	secret := flag.String("secret", envOr("TOKEN_SECRET", "dev-secret"), "token secret")
	flag.Parse()

	if *password == "" {
		fmt.Fprintln(os.Stderr, "password must not be empty")
		os.Exit(2)
	}
	fmt.Println(admintoken.Issue(*password, *secret))
}

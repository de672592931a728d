// Command devtoken mints a bearer token for local testing against a server
// that shares the same JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"payreport/internal/domain/auth"
	"payreport/internal/platform/config"
)

func main() {
	cfg := config.Load()
	userID := flag.String("user", "", "user id (required)")
	plan := flag.String("plan", "free", "subscription plan")
	household := flag.String("household", "", "comma-separated user ids this user may read")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(2)
	}

	var members []string
	for _, id := range strings.Split(*household, ",") {
		if id = strings.TrimSpace(id); id != "" {
			members = append(members, id)
		}
	}

	token, err := auth.GenerateToken(cfg.JWTSecret, auth.Claims{UserID: *userID, Plan: *plan, Household: members}, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}

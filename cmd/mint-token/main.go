package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/testnest/cbt-backend/internal/config"
	"github.com/testnest/cbt-backend/internal/service"
)

// mint-token issues a signed JWT for local development and testing.
// Production tokens come from the identity service; this tool only exists
// so curl and e2e runs can talk to the API without one.
func main() {
	var (
		tokenType = flag.String("type", "student", "Token type: student or admin")
		userID    = flag.Int("id", 1, "User ID to embed in the token")
	)
	flag.Parse()

	var tt service.TokenType
	switch *tokenType {
	case "student":
		tt = service.TokenTypeStudent
	case "admin":
		tt = service.TokenTypeAdmin
	default:
		fmt.Fprintf(os.Stderr, "unknown token type %q (want student or admin)\n", *tokenType)
		os.Exit(1)
	}

	cfg := config.Load()
	authService := service.NewAuthService(cfg)

	token, err := authService.GenerateToken(tt, *userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}

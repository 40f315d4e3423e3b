package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meta-closure/zerot/pkg/authctx"
	"github.com/meta-closure/zerot/pkg/config"
	"github.com/meta-closure/zerot/pkg/identity"
)

func runTokenCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("token", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		userID  = cmd.String("user", "", "User ID (sub claim, required)")
		email   = cmd.String("email", "", "Email claim")
		roles   = cmd.String("roles", "", "Comma-separated roles")
		session = cmd.String("session", "", "Session ID (default: random)")
		ttl     = cmd.Duration("ttl", time.Hour, "Token lifetime")
	)
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *userID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --user is required")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	keys, err := identity.NewSeededKeySet(cfg.JWTSeed)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *session == "" {
		*session = uuid.New().String()
	}
	user := authctx.User{ID: *userID, Email: *email}
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			user.Roles = append(user.Roles, r)
		}
	}

	token, err := authctx.IssueToken(context.Background(), keys, cfg.JWTIssuer, user, *session, *ttl)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, token)
	return 0
}

// Command tooltoken mints a service token for the /tools and /ops endpoints
// using the same TOOLS_TOKEN_SECRET as the API.
package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/spec-kit/ticket-upgrade-agent/internal/auth"
	"github.com/spec-kit/ticket-upgrade-agent/internal/config"
)

func main() {
	service := pflag.StringP("service", "s", "operator", "calling service name")
	scopes := pflag.StringSlice("scope", []string{string(auth.ScopeToolsInvoke)}, "granted scope (repeatable)")
	ttl := pflag.Duration("ttl", 0, "token lifetime (defaults to TOOLS_TOKEN_TTL_SECONDS)")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	lifetime := cfg.Tools.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	var granted []auth.Scope
	for _, s := range *scopes {
		if s = strings.TrimSpace(s); s != "" {
			granted = append(granted, auth.Scope(s))
		}
	}

	tokens := auth.NewTokenManager(cfg.Tools.TokenSecret, lifetime, cfg.App.Name)
	token, expiresAt, err := tokens.GenerateToken(*service, granted...)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Println(token)
	log.Printf("expires %s", expiresAt.Format(time.RFC3339))
}

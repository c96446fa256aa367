// devtoken mints an HS256 access token for local testing.
// Usage: go run ./cmd/devtoken -org <uuid> -role admin
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/config"
	"github.com/eduardojeem/Mipos-sub008/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	org := flag.String("org", "", "organization id (random when empty)")
	user := flag.String("user", "", "user id (random when empty)")
	role := flag.String("role", "admin", "cashier | supervisor | admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	orgID := orNewUUID(*org, "org")
	userID := orNewUUID(*user, "user")

	now := time.Now()
	token, err := middleware.SignToken(cfg.JWTSecret, middleware.JWTClaims{
		UserID:         userID.String(),
		OrganizationID: orgID.String(),
		Role:           *role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("sign token")
	}

	log.Info().Str("organization_id", orgID.String()).Str("user_id", userID.String()).Str("role", *role).Msg("token issued")
	fmt.Println(token)
}

func orNewUUID(raw, name string) uuid.UUID {
	if raw == "" {
		return uuid.New()
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		log.Fatal().Err(err).Str("flag", name).Msg("invalid uuid")
	}
	return id
}

package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/memberauth/internal/flagx"
)

var serverFlags = flagx.Set{
	Value: []string{"-a", "-n", "-d", "-f", "-x", "-s", "-t", "-r", "-w", "-k", "-l"},
	Bool:  []string{"-y"},
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-n string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN ("" keeps members in memory)
//	-f string   refresh token store: postgres, redis or memory
//	-x string   Redis address
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-w string   password hash algorithm: bcrypt or argon2id
//	-k int      password hash cost (0 = algorithm default)
//	-l string   log level
//	-y          secure (HTTPS-only) cookies
//
// Durations are accepted as integers in minutes.
func parseFlags(config *Config) {
	args := serverFlags.Filter(os.Args[1:])

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "n", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RefreshStore, "f", config.RefreshStore, "refresh token store (postgres, redis, memory)")
	fs.StringVar(&config.RedisAddr, "x", config.RedisAddr, "redis address")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")
	fs.StringVar(&config.PasswordHashAlgorithm, "w", config.PasswordHashAlgorithm, "password hash algorithm (bcrypt, argon2id)")
	fs.IntVar(&config.PasswordHashCost, "k", config.PasswordHashCost, "password hash cost (0 = algorithm default)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.BoolVar(&config.SecureCookies, "y", config.SecureCookies, "secure cookies")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
}

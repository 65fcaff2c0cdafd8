// Command devtoken prints a signed access token for local testing.
//
//	JWT_SECRET=... go run ./cmd/devtoken -user 1 -role CUSTOMER
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/transport-booking/internal/model"
	"github.com/iliyamo/transport-booking/internal/utils"
)

func main() {
	user := flag.Uint64("user", 1, "account id placed in the sub claim")
	role := flag.String("role", model.RoleCustomer, "CUSTOMER or STAFF")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	if *role != model.RoleCustomer && *role != model.RoleStaff {
		log.Fatalf("unknown role %q", *role)
	}
	tok, err := utils.NewAccessToken(os.Getenv("JWT_SECRET"), *user, *role, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
}

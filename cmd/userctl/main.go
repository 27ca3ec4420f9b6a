// Command userctl manages accounts out of band; there is no sign-up
// endpoint.
//
//	userctl hash   -password secret
//	userctl create -email dev@example.com -password secret -role developer
//	userctl revoke -email dev@example.com
//
// create and revoke read the same environment as the server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/iliyamo/decision-board/internal/config"
	"github.com/iliyamo/decision-board/internal/database"
	"github.com/iliyamo/decision-board/internal/model"
	"github.com/iliyamo/decision-board/internal/repository"
	"github.com/iliyamo/decision-board/internal/utils"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "userctl:", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage: userctl hash|create|revoke [flags]")

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(out)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "plain-text password")
	role := fs.String("role", string(model.RolePartner), "developer or partner")
	cost := fs.Int("cost", 0, "bcrypt cost (default: BCRYPT_COST)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	switch args[0] {
	case "hash":
		if *password == "" {
			return errors.New("-password is required")
		}
		h, err := utils.HashPassword(*password, *cost)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, h)
		return err
	case "create", "revoke":
	default:
		return errUsage
	}

	cfg := config.Load()
	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		return err
	}
	users := repository.NewUserRepo(db)

	if args[0] == "create" {
		c := *cost
		if c == 0 {
			c = cfg.BcryptCost
		}
		id, err := users.Create(ctx, *email, *password, model.Role(*role), c)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "created user %d (%s)\n", id, *role)
		return err
	}

	u, err := users.GetByEmail(ctx, *email)
	if err != nil {
		return err
	}
	n, err := repository.NewSessionRepo(db).DestroyAllForUser(ctx, u.ID)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "revoked %d session(s) for %s\n", n, u.Email)
	return err
}

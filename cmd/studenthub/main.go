package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	studenthub "github.com/Bhavani-Nayak/studenthub"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "studenthub:", err)
		os.Exit(1)
	}
}

func run() error {
	f := flag.NewFlagSet("studenthub", flag.ExitOnError)
	f.String("config", "", "path to a YAML config file")
	f.String("addr", ":3000", "address to listen on")
	f.String("dsn", "file:studenthub.db?cache=shared&_pragma=foreign_keys(1)", "database DSN")
	f.String("signing-key", "", "HMAC signing key for session tokens")
	f.Duration("token-ttl", 24*time.Hour, "session token lifetime")
	f.StringSlice("approval-roles", []string{"faculty"}, "roles whose registrations wait for admin approval")
	if err := f.Parse(os.Args[1:]); err != nil {
		return err
	}

	k := koanf.New(".")
	if path, _ := f.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
	}
	// Flags given on the command line win over the file.
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return fmt.Errorf("load flags: %w", err)
	}

	signingKey := k.String("signing-key")
	if signingKey == "" {
		return fmt.Errorf("a signing key is required, set --signing-key or signing-key in the config file")
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, k.String("dsn"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	ctx := context.Background()
	if err := studenthub.CreateUserSchema(ctx, db); err != nil {
		return err
	}

	approvalRoles := make([]studenthub.Role, 0, 2)
	for _, name := range k.Strings("approval-roles") {
		role, ok := studenthub.ParseRole(name)
		if !ok {
			return fmt.Errorf("approval-roles: unknown role %q", name)
		}
		approvalRoles = append(approvalRoles, role)
	}

	tokens := studenthub.NewTokenService(
		[]byte(signingKey),
		k.Duration("token-ttl"),
		"studenthub",
		nil,
	)

	server := studenthub.NewServer(
		studenthub.NewUsersRepository(db),
		tokens,
		studenthub.WithApprovalRoles(approvalRoles...),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		if err := server.Shutdown(); err != nil {
			fmt.Fprintln(os.Stderr, "studenthub: shutdown:", err)
		}
	}()

	return server.Listen(k.String("addr"))
}

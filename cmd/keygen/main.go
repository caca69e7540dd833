// Command keygen creates an API key for a profile and prints it once.
//
//	keygen -profile default -name laptop -scopes read,write,admin
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kiranshivaraju/mealtrack/internal/apikey"
	"github.com/kiranshivaraju/mealtrack/internal/config"
	"github.com/kiranshivaraju/mealtrack/internal/store"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := run(os.Args[1:], os.Stdout); err != nil {
		slog.Error("keygen failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	profileID := fs.String("profile", store.DefaultProfileID, "profile that owns the key")
	name := fs.String("name", "admin", "label shown when listing keys")
	scopes := fs.String("scopes", "read,write,admin", "comma separated scopes")
	migrations := fs.String("migrations", "migrations", "migrations directory (postgres only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := store.Open(ctx, cfg.Database, *migrations)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	raw, key, err := createKey(ctx, db, *profileID, *name, splitScopes(*scopes))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "API key for profile %q (%s): %s\n", key.ProfileID, strings.Join(key.Scopes, ","), raw)
	fmt.Fprintln(out, "Store it now; it cannot be shown again.")
	return nil
}

// createKey makes sure the profile exists and stores a new key for it.
func createKey(ctx context.Context, db store.Store, profileID, name string, scopes []string) (string, *models.APIKey, error) {
	if _, err := db.GetProfile(ctx, profileID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return "", nil, fmt.Errorf("load profile: %w", err)
		}
		if err := db.PutProfile(ctx, &models.Profile{ID: profileID, MedicalConditions: []string{}}); err != nil {
			return "", nil, fmt.Errorf("create profile: %w", err)
		}
	}

	raw, key, err := apikey.New(profileID, name, scopes)
	if err != nil {
		return "", nil, err
	}
	if err := db.CreateAPIKey(ctx, key); err != nil {
		return "", nil, fmt.Errorf("store api key: %w", err)
	}
	return raw, key, nil
}

func splitScopes(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

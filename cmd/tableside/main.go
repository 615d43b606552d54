package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"tableside/internal/app"
	"tableside/internal/config"
	"tableside/internal/db"
	"tableside/internal/migrate"
	"tableside/internal/repo"
	tablesidesdk "tableside/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "tableside",
	Short: "Tableside CLI",
	Long: `Tableside runs the ordering core of a restaurant floor.
- Carts: each table builds a cart from the menu; identical lines merge and totals include modifier deltas.
- Orders: submitted carts become PLACED orders; the kitchen moves them through PREPARING, READY, SERVED and PAID.
- Queue: every PREPARING order holds a first-come position; that position is the order's priority.
- Shift: closing a shift archives every order and starts the next one empty.
- Event log: every change is recorded, view it with 'tableside log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if err := godotenv.Load(filepath.Join(workspace, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TABLESIDE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier recorded in the event log")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "development logging")
	rootCmd.PersistentFlags().String("server", "http://127.0.0.1:8080", "Tableside API server for remote commands")
	rootCmd.PersistentFlags().String("token", "", "bearer token for remote commands")
	for _, name := range []string{"workspace", "json", "actor-id", "verbose", "server", "token"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(menuCmd())
	rootCmd.AddCommand(ordersCmd())
	rootCmd.AddCommand(kitchenCmd())
	rootCmd.AddCommand(shiftCmd())
	rootCmd.AddCommand(logCmd())
}

func initCmd() *cobra.Command {
	var restaurantID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create tableside.yml, the workspace database and a JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); err == nil && !viper.GetBool("force") {
				return fmt.Errorf("%s already exists; use --force to overwrite", cfgPath)
			}
			if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault(restaurantID)), 0o644); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			envPath := filepath.Join(workspace, ".env")
			if viper.GetString("jwt-secret") == "" {
				secret, err := randomSecret()
				if err != nil {
					return err
				}
				if err := setEnvValue(envPath, "TABLESIDE_JWT_SECRET", secret); err != nil {
					return err
				}
			}
			fmt.Printf("Initialized %s (restaurant %s, database %s)\n", cfgPath, restaurantID, db.Path(workspace))
			return nil
		},
	}
	cmd.Flags().StringVar(&restaurantID, "restaurant", app.DefaultRestaurantID, "restaurant id")
	cmd.Flags().Bool("force", false, "overwrite an existing tableside.yml")
	_ = viper.BindPFlag("force", cmd.Flags().Lookup("force"))
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Everything that happened this shift: submissions, status changes, refreshes, menu imports.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var f repo.EventFilter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				f.RestaurantID = env.Config.Restaurant.ID
				events, err := env.Repo.LatestEvents(ctx, n, 0, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "When", "Type", "Entity", "Actor", "Payload"})
				for _, e := range events {
					when := e.TS
					if ts, err := time.Parse(time.RFC3339, e.TS); err == nil {
						when = humanize.Time(ts)
					}
					tw.AppendRow(table.Row{e.ID, when, e.Type, strings.TrimSuffix(e.EntityKind+":"+e.EntityID, ":"), e.ActorID, e.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

// --- helpers ---

func newLogger() (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if viper.GetBool("verbose") {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func withEnv(ctx context.Context, fn func(context.Context, *app.Env) error) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()
	env, err := app.Open(ctx, viper.GetString("workspace"), log)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}

func remoteClient() *tablesidesdk.Client {
	c := tablesidesdk.New(viper.GetString("server"))
	c.BearerToken = viper.GetString("token")
	return c
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

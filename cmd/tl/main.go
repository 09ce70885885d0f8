package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"touchline/internal/app"
	"touchline/internal/config"
	"touchline/internal/observability"
	touchlinesdk "touchline/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "Touchline bridge CLI",
	Long: `Touchline is the bridge between an AI manager agent, a football simulation and the human playing it.
- serve: run the bridge (state hub, HTTP API, live event stream).
- observe/inbox/messages: read the bridge as the agent or the client sees it.
- act/next: queue an agent action and pop it as the simulation would.
- watch: follow the live event stream.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TOUCHLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", "touchline.yml", "config file (defaults are used when it is missing)")
	rootCmd.PersistentFlags().String("url", "http://127.0.0.1:3001/api", "bridge API base URL")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(observeCmd())
	rootCmd.AddCommand(inboxCmd())
	rootCmd.AddCommand(messagesCmd())
	rootCmd.AddCommand(actCmd())
	rootCmd.AddCommand(nextCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(configCmd())
}

// loadConfig reads the config file and layers TOUCHLINE_* env vars and
// serve flags over it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if v := viper.GetString("base-path"); v != "" {
		cfg.Server.BasePath = v
	}
	if v := viper.GetString("simulation-url"); v != "" {
		cfg.Simulation.BaseURL = v
	}
	if v := viper.GetString("team"); v != "" {
		cfg.Bridge.TeamSlug = v
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if viper.IsSet("refresh-interval") {
		cfg.Simulation.RefreshInterval = viper.GetDuration("refresh-interval")
	}
	return cfg, cfg.Validate()
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
			a, err := app.Build(cfg, logger)
			if err != nil {
				return err
			}
			a.Start(cmd.Context())
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: a.Handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving touchline bridge",
				"addr", cfg.Server.Addr,
				"base_path", cfg.Server.BasePath,
				"simulation", cfg.Simulation.BaseURL,
				"team", cfg.Bridge.TeamSlug,
			)
			fmt.Printf("Serving Touchline bridge on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n",
				cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().String("base-path", "", "API base path (overrides server.base_path)")
	cmd.Flags().String("simulation-url", "", "simulation backend URL (overrides simulation.base_url)")
	cmd.Flags().String("team", "", "managed team slug (overrides bridge.team_slug)")
	cmd.Flags().String("log-level", "", "debug, info, warn or error")
	cmd.Flags().Duration("refresh-interval", 0, "background simulation refresh (0 disables)")
	for _, name := range []string{"addr", "base-path", "simulation-url", "team", "log-level", "refresh-interval"} {
		_ = viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}
	return cmd
}

func newClient() *touchlinesdk.Client {
	return touchlinesdk.New(viper.GetString("url"))
}

func observeCmd() *cobra.Command {
	var team string
	var noRefresh bool
	cmd := &cobra.Command{
		Use:   "observe",
		Short: "Show the agent's observation",
		RunE: func(cmd *cobra.Command, args []string) error {
			obs, err := newClient().Observe(cmd.Context(), team, !noRefresh)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(obs)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Field", "Value"})
			tw.AppendRow(table.Row{"Date", fmt.Sprintf("%s (%s)", obs.GameDate, obs.GameDate.Weekday)})
			tw.AppendRow(table.Row{"Team", obs.Team.Name})
			tw.AppendRow(table.Row{"League", fmt.Sprintf("%s, position %d", obs.Team.LeagueName, obs.Team.LeaguePosition)})
			tw.AppendRow(table.Row{"Form", obs.Team.RecentForm})
			tw.AppendRow(table.Row{"Board confidence", obs.Team.BoardConfidence})
			tw.AppendRow(table.Row{"Morale", obs.Team.TeamMorale})
			tw.AppendRow(table.Row{"Pending notifications", len(obs.PendingNotifications)})
			tw.AppendRow(table.Row{"Active promises", len(obs.ActivePromises)})
			tw.AppendRow(table.Row{"Recent knowledge", len(obs.RecentKnowledge)})
			active := "-"
			if cc := obs.ActiveConversation; cc != nil {
				active = fmt.Sprintf("%s with %s (%d messages)", cc.Conversation.Type, cc.Character.Name, len(cc.Conversation.Messages))
			}
			tw.AppendRow(table.Row{"Active conversation", active})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&team, "team", "", "team slug")
	cmd.Flags().BoolVar(&noRefresh, "cached", false, "serve the cached snapshot without querying the simulation")
	return cmd
}

func inboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List pending notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, unread, err := newClient().Inbox(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"notifications": items, "unreadCount": unread})
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Priority", "Title", "Character", "Date", "Read"})
			for _, n := range items {
				tw.AppendRow(table.Row{n.ID, n.Priority, n.Title, n.CharacterID, n.GameDate.String(), n.Read})
			}
			tw.AppendFooter(table.Row{"", "", "", "", "unread", unread})
			tw.Render()
			return nil
		},
	}
	cmd.AddCommand(inboxAddCmd())
	cmd.AddCommand(inboxDismissCmd())
	return cmd
}

func inboxAddCmd() *cobra.Command {
	var in touchlinesdk.NotificationInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := newClient().AddNotification(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(n)
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "title")
	cmd.Flags().StringVar(&in.Preview, "preview", "", "preview text")
	cmd.Flags().StringVar(&in.Icon, "icon", "", "icon (player, contract, transfer, board, press, match, warning, info)")
	cmd.Flags().StringVar(&in.Priority, "priority", "", "urgent, high, medium or low")
	cmd.Flags().StringVar(&in.CharacterID, "character", "", "character id")
	cmd.Flags().StringVar(&in.ConversationType, "conversation-type", "", "conversation type to start")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func inboxDismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <id>",
		Short: "Dismiss a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := newClient().DismissNotification(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(n)
		},
	}
}

func messagesCmd() *cobra.Command {
	var since string
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "List agent messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sincePtr *time.Time
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("--since must be RFC3339: %w", err)
				}
				sincePtr = &t
			}
			msgs, err := newClient().Messages(cmd.Context(), sincePtr)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(msgs)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"At", "Type", "Content"})
			for _, m := range msgs {
				tw.AppendRow(table.Row{m.CreatedAt.Format(time.RFC3339), m.Type, m.Content})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only messages after this RFC3339 time")
	cmd.AddCommand(messagesPostCmd())
	return cmd
}

func messagesPostCmd() *cobra.Command {
	var msgType string
	cmd := &cobra.Command{
		Use:   "post <content>",
		Short: "Log an agent message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newClient().PostMessage(cmd.Context(), msgType, args[0])
			if err != nil {
				return err
			}
			return printJSON(m)
		},
	}
	cmd.Flags().StringVar(&msgType, "type", "status", "thinking, action, status or response")
	return cmd
}

func actCmd() *cobra.Command {
	var payload string
	cmd := &cobra.Command{
		Use:   "act <type>",
		Short: "Queue an agent action",
		Long:  "Queue an action (respond, trigger_event, update_memory, end_conversation). --payload is the JSON payload object.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body map[string]any
			if err := json.Unmarshal([]byte(payload), &body); err != nil {
				return fmt.Errorf("--payload must be a JSON object: %w", err)
			}
			if err := newClient().Act(cmd.Context(), args[0], body); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"success": true, "queued": true})
			}
			fmt.Println("queued", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "", "payload JSON")
	_ = cmd.MarkFlagRequired("payload")
	return cmd
}

func nextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Pop the oldest queued action",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ok, err := newClient().Next(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				if !ok {
					return printJSON(map[string]any{"hasAction": false, "action": nil})
				}
				return printJSON(map[string]any{"hasAction": true, "action": a})
			}
			if !ok {
				fmt.Println("no queued action")
				return nil
			}
			fmt.Println(a.Type, string(a.Payload))
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the live event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient().Stream(cmd.Context(), func(f touchlinesdk.Frame) error {
				if viper.GetBool("json") {
					b, err := json.Marshal(f)
					if err != nil {
						return err
					}
					fmt.Println(string(b))
					return nil
				}
				line := fmt.Sprintf("%s %-12s", f.Timestamp.Format(time.TimeOnly), f.Type)
				switch {
				case f.Message != nil:
					line += fmt.Sprintf(" [%s] %s: %s", f.ConversationID, f.Message.Role, f.Message.Content)
				case f.Notification != nil:
					line += fmt.Sprintf(" %s (%s)", f.Notification.Title, f.Notification.Priority)
				case f.ConversationID != "":
					line += " " + f.ConversationID
				}
				fmt.Println(line)
				return nil
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect bridge config",
		Long:  "Config is read from touchline.yml (or --config); TOUCHLINE_* environment variables and serve flags override it.",
	}
	cfg.AddCommand(configDefaultCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default",
		Short: "Print the default config YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(config.GenerateDefault())
			return nil
		},
	}
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfig()
			if viper.GetBool("json") {
				out := map[string]any{"ok": err == nil}
				if err != nil {
					out["error"] = err.Error()
				}
				return printJSON(out)
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"daydash/internal/config"
	"daydash/internal/domain"
	"daydash/internal/events"
	"daydash/internal/gcal"
	"daydash/internal/identity"
	"daydash/internal/lifecycle"
	"daydash/internal/publisher"
	"daydash/internal/scheduler"
	"daydash/internal/server"
	"daydash/internal/settings"
	"daydash/internal/store"
	"daydash/internal/timecalc"
)

const profileFileName = "profile.json"

var rootCmd = &cobra.Command{
	Use:   "daydash",
	Short: "Daydash CLI",
	Long: `Daydash tracks one day of tasks with break-aware time arithmetic and
pulls your calendar next to them. Sign in to keep data per account, or
stay signed out and work as a throwaway guest.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DAYDASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("data-root", "", "data directory (default: per-user config dir)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("date", "", "date yyyy-mm-dd (default: today)")
	_ = viper.BindPFlag("data-root", rootCmd.PersistentFlags().Lookup("data-root"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("date", rootCmd.PersistentFlags().Lookup("date"))
}

func registerCommands() {
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- session helpers ---

func dataRoot() (string, error) {
	if root := viper.GetString("data-root"); root != "" {
		return root, nil
	}
	return identity.DefaultDataRoot()
}

func profilePath(root string) string {
	return filepath.Join(root, profileFileName)
}

// loadProfile returns the saved sign-in, or nil for guest.
func loadProfile(root string) *domain.UserProfile {
	raw, err := os.ReadFile(profilePath(root))
	if err != nil {
		return nil
	}
	var user domain.UserProfile
	if json.Unmarshal(raw, &user) != nil || user.Email == "" {
		return nil
	}
	return &user
}

func newResolver(root string) identity.Resolver {
	return func() *domain.UserProfile { return loadProfile(root) }
}

func newStore(root string) *store.Store {
	return store.New(store.Options{
		Resolve:  newResolver(root),
		DataRoot: root,
	})
}

func newEvents(root string) *events.Writer {
	return events.NewWriter(root)
}

func activeDate() string {
	if date := viper.GetString("date"); date != "" {
		return date
	}
	return time.Now().Format("2006-01-02")
}

// --- output helpers ---

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

var (
	doingColor     = color.New(color.FgGreen)
	suspendColor   = color.New(color.FgYellow)
	doneColor      = color.New(color.FgCyan)
	carryoverColor = color.New(color.FgMagenta)
)

func statusLabel(status string) string {
	switch status {
	case domain.StatusDoing:
		return doingColor.Sprint(status)
	case domain.StatusSuspend:
		return suspendColor.Sprint(status)
	case domain.StatusDone, domain.StatusFinished:
		return doneColor.Sprint(status)
	case domain.StatusCarryover:
		return carryoverColor.Sprint(status)
	default:
		return status
	}
}

func formatMinutes(minutes int, mode string) string {
	if mode == settings.DisplayDecimal {
		return timecalc.FormatMinutesAsDecimalHours(minutes)
	}
	return timecalc.FormatMinutesAsHourMinute(minutes)
}

// --- auth commands ---

func loginCmd() *cobra.Command {
	var name, email, iconURL string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(email) == "" {
				return fmt.Errorf("--email is required")
			}
			root, err := dataRoot()
			if err != nil {
				return err
			}
			user := domain.UserProfile{
				Name:    strings.TrimSpace(name),
				Email:   identity.NormalizeEmail(email),
				IconURL: strings.TrimSpace(iconURL),
			}
			if err := os.MkdirAll(root, 0o755); err != nil {
				return err
			}
			data, err := json.MarshalIndent(user, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(profilePath(root), data, 0o600); err != nil {
				return err
			}
			fmt.Printf("signed in as %s\n", user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&iconURL, "icon", "", "avatar URL")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and erase guest data",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := dataRoot()
			if err != nil {
				return err
			}
			if err := os.Remove(profilePath(root)); err != nil && !os.IsNotExist(err) {
				return err
			}
			if err := newStore(root).ClearGuestData(); err != nil {
				return err
			}
			fmt.Println("signed out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the active identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := dataRoot()
			if err != nil {
				return err
			}
			user := loadProfile(root)
			if viper.GetBool("json") {
				return printJSON(map[string]any{
					"userId": identity.Key(user),
					"user":   user,
				})
			}
			if user == nil {
				fmt.Println("guest")
				return nil
			}
			fmt.Printf("%s <%s>\n", user.Name, user.Email)
			return nil
		},
	}
}

// --- task commands ---

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage the day's tasks"}
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskTransitionCmd("start", "Start tracking a task", "task.started", lifecycle.Start))
	task.AddCommand(taskTransitionCmd("suspend", "Pause tracking", "task.suspended", lifecycle.Suspend))
	task.AddCommand(taskTransitionCmd("resume", "Resume a suspended task", "task.resumed", lifecycle.Resume))
	task.AddCommand(taskStopCmd())
	task.AddCommand(taskDoneCmd())
	task.AddCommand(taskRemoveCmd())
	return task
}

func taskAddCmd() *cobra.Command {
	var project, category, title, memo, priority, estStart, estEnd string
	var estMinutes int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := dataRoot()
			if err != nil {
				return err
			}
			input := domain.TaskCreateInput{
				Date:     activeDate(),
				Project:  project,
				Category: category,
				Title:    title,
				Priority: priority,
				Memo:     memo,
				Estimated: domain.TaskEstimate{
					Minutes: estMinutes,
				},
			}
			if estStart != "" {
				input.Estimated.Start = &estStart
			}
			if estEnd == "" && estStart != "" && estMinutes > 0 {
				// Derive the end from the start and the estimate, skipping
				// the lunch break.
				if end, ok := timecalc.CalculateEndTime(estStart, estMinutes); ok {
					input.Estimated.End = &end
				}
			} else if estEnd != "" {
				input.Estimated.End = &estEnd
			}
			task, err := newStore(root).Add(input)
			if err != nil {
				return err
			}
			_ = newEvents(root).Append("task.created", task.UserID, task.ID, events.Payload{"title": task.Title})
			if viper.GetBool("json") {
				return printJSON(task)
			}
			fmt.Printf("added %s (%s)\n", task.Title, task.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project name")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&memo, "memo", "", "free-form memo")
	cmd.Flags().StringVar(&priority, "priority", domain.PriorityMedium, "urgent|high|medium|low")
	cmd.Flags().StringVar(&estStart, "from", "", "planned start HH:mm")
	cmd.Flags().StringVar(&estEnd, "to", "", "planned end HH:mm")
	cmd.Flags().IntVar(&estMinutes, "minutes", 0, "estimated minutes")
	return cmd
}

func taskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks for the active date",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := dataRoot()
			if err != nil {
				return err
			}
			list, err := newStore(root).GetAll(activeDate())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(list)
			}
			mode := settings.NewService(newResolver(root), root).Load().TaskTimeDisplayMode
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Project", "Title", "Status", "Priority", "Est", "Actual"})
			for _, t := range list.Tasks {
				tw.AppendRow(table.Row{
					t.ID,
					t.Project,
					t.Title,
					statusLabel(t.Status),
					t.Priority,
					formatMinutes(t.Estimated.Minutes, mode),
					formatMinutes(t.Actual.Minutes, mode),
				})
			}
			tw.Render()
			return nil
		},
	}
}

func taskTransitionCmd(use, short, evtType string, transition func(domain.Task, time.Time) domain.Task) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyTransition(args[0], evtType, transition)
		},
	}
}

func taskStopCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "stop <task-id>",
		Short: "Stop tracking and close the task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch status {
			case domain.StatusDone, domain.StatusCarryover, domain.StatusFinished:
			default:
				return fmt.Errorf("--status must be done, carryover or finished")
			}
			return applyTransition(args[0], "task.stopped", func(task domain.Task, now time.Time) domain.Task {
				return lifecycle.Stop(task, now, status)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", domain.StatusDone, "done|carryover|finished")
	return cmd
}

func taskDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <task-id>",
		Short: "Stop tracking and mark the task done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyTransition(args[0], "task.stopped", func(task domain.Task, now time.Time) domain.Task {
				return lifecycle.Stop(task, now, domain.StatusDone)
			})
		},
	}
}

func applyTransition(taskID, evtType string, transition func(domain.Task, time.Time) domain.Task) error {
	root, err := dataRoot()
	if err != nil {
		return err
	}
	st := newStore(root)
	current, err := st.Find(taskID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("task %s not found", taskID)
	}
	updated, err := st.Update(transition(*current, time.Now()))
	if err != nil {
		return err
	}
	if updated == nil {
		return fmt.Errorf("task %s not found", taskID)
	}
	_ = newEvents(root).Append(evtType, updated.UserID, updated.ID, events.Payload{"status": updated.Status})
	if viper.GetBool("json") {
		return printJSON(updated)
	}
	fmt.Printf("%s: %s\n", updated.Title, statusLabel(updated.Status))
	return nil
}

func taskRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <task-id>",
		Short: "Remove a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := dataRoot()
			if err != nil {
				return err
			}
			removed, err := newStore(root).Remove(args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("task %s not found", args[0])
			}
			_ = newEvents(root).Append("task.removed", identity.Key(loadProfile(root)), args[0], nil)
			fmt.Println("removed")
			return nil
		},
	}
}

// --- settings commands ---

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "settings", Short: "Manage dashboard preferences"}
	cmd.AddCommand(settingsShowCmd())
	cmd.AddCommand(settingsSetCmd())
	return cmd
}

func settingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active identity's settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := dataRoot()
			if err != nil {
				return err
			}
			return printJSON(settings.NewService(newResolver(root), root).Load())
		},
	}
}

func settingsSetCmd() *cobra.Command {
	var fetchTime, displayMode string
	var interval int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update settings; omitted flags keep their value",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := dataRoot()
			if err != nil {
				return err
			}
			svc := settings.NewService(newResolver(root), root)
			current := svc.Load()
			if cmd.Flags().Changed("fetch-time") {
				if fetchTime == "" {
					current.AutoFetchTime = nil
				} else {
					current.AutoFetchTime = &fetchTime
				}
			}
			if cmd.Flags().Changed("fetch-interval") {
				if interval <= 0 {
					current.AutoFetchIntervalMinutes = nil
				} else {
					current.AutoFetchIntervalMinutes = &interval
				}
			}
			if cmd.Flags().Changed("display-mode") {
				current.TaskTimeDisplayMode = displayMode
			}
			saved, err := svc.Save(current)
			if err != nil {
				return err
			}
			return printJSON(saved)
		},
	}
	cmd.Flags().StringVar(&fetchTime, "fetch-time", "", "daily auto-fetch time HH:mm, empty to clear")
	cmd.Flags().IntVar(&interval, "fetch-interval", 0, "auto-fetch interval minutes, 0 to clear")
	cmd.Flags().StringVar(&displayMode, "display-mode", "", "hourMinute|decimal")
	return cmd
}

// --- calendar commands ---

func calendarCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "calendar", Short: "Google Calendar authorization"}
	cmd.AddCommand(calendarAuthCmd())
	cmd.AddCommand(calendarCodeCmd())
	return cmd
}

func calendarAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Print the authorization URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := dataRoot()
			if err != nil {
				return err
			}
			url, err := gcal.NewClient(newResolver(root), root).AuthURL("daydash")
			if err != nil {
				return err
			}
			fmt.Println("open this URL in a browser, then run: daydash calendar code <code>")
			fmt.Println(url)
			return nil
		},
	}
}

func calendarCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "code <authorization-code>",
		Short: "Exchange an authorization code for a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := dataRoot()
			if err != nil {
				return err
			}
			if err := gcal.NewClient(newResolver(root), root).Exchange(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("calendar authorized")
			return nil
		},
	}
}

func newPublisher(root string) *publisher.Publisher {
	client := gcal.NewClient(newResolver(root), root)
	return &publisher.Publisher{
		Resolve: newResolver(root),
		Fetch:   client.FetchDay,
		Notify: func(update domain.CalendarUpdate) {
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Calendar", "Subject", "Time"})
			for _, row := range update.Events {
				tw.AppendRow(table.Row{row.CalendarName, row.Subject, row.DateTime})
			}
			tw.Render()
			fmt.Printf("updated %s (%s)\n", update.UpdatedAt, update.Source)
		},
	}
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch calendar events for the active date",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := dataRoot()
			if err != nil {
				return err
			}
			if loadProfile(root) == nil {
				return fmt.Errorf("sign in first: daydash login --email <email>")
			}
			rows := newPublisher(root).FetchAndPublish(cmd.Context(), activeDate(), publisher.SourceManual)
			_ = newEvents(root).Append("calendar.fetched", identity.Key(loadProfile(root)), "", events.Payload{"events": len(rows)})
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the auto-fetch loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := dataRoot()
			if err != nil {
				return err
			}
			pub := newPublisher(root)
			svc := settings.NewService(newResolver(root), root)

			var lastDaily string
			var lastFetch time.Time
			sched := scheduler.New(scheduler.Options{
				Resolve:  newResolver(root),
				Settings: svc.Load,
				Fetch: func(ctx context.Context, dateKey string) {
					pub.FetchAndPublish(ctx, dateKey, publisher.SourceAuto)
				},
				GetLastDailyFetchDate: func() string { return lastDaily },
				SetLastDailyFetchDate: func(k string) { lastDaily = k },
				GetLastFetchAt:        func() time.Time { return lastFetch },
				SetLastFetchAt:        func(at time.Time) { lastFetch = at },
			})
			sched.Start()
			defer sched.Stop()
			fmt.Println("watching; press Ctrl-C to stop")
			<-cmd.Context().Done()
			return nil
		},
	}
}

// --- serve ---

func serveCmd() *cobra.Command {
	var workspace string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			secret := cfg.Auth.JWTSecret
			if secret == "" {
				secret = os.Getenv("DAYDASH_JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("set auth.jwt_secret in daydash.yml or DAYDASH_JWT_SECRET")
			}
			root := cfg.Data.Root
			st := store.New(store.Options{DataRoot: root})
			handler, err := server.New(server.Config{
				Store:    st,
				Settings: settings.NewService(nil, root),
				Events:   newEvents(root),
				Fetch: func(ctx context.Context, user *domain.UserProfile, dateKey string) ([]domain.CalendarRow, error) {
					client := gcal.NewClient(func() *domain.UserProfile { return user }, root)
					return client.FetchDay(ctx, dateKey)
				},
				BasePath: cfg.Server.BasePath,
				Auth: server.AuthConfig{
					JWTSecret: secret,
					TokenTTL:  time.Duration(cfg.Auth.TokenHours) * time.Hour,
				},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Listen, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Daydash API on http://%s%s\n", cfg.Server.Listen, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", ".", "directory containing daydash.yml")
	return cmd
}

package stockpicks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/entitlement-session/internal/apiclient"
	"github.com/magabrotheeeer/entitlement-session/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-session/internal/models"
	"github.com/magabrotheeeer/entitlement-session/internal/session"
)

// passwordEnv переменная окружения с паролем, если он не передан флагом.
const passwordEnv = "STOCKPICKS_PASSWORD"

// ErrUsage неверный вызов CLI.
var ErrUsage = errors.New("usage error")

type command struct {
	summary string
	run     func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"login":     {"log in with email and password", (*App).login},
	"register":  {"create an account and log in", (*App).register},
	"logout":    {"end the session", (*App).logout},
	"status":    {"show the session state", (*App).status},
	"refresh":   {"re-check the subscription", (*App).refresh},
	"plans":     {"list subscription plans", (*App).plans},
	"checkout":  {"start a checkout for a plan", (*App).checkout},
	"cancel":    {"cancel the current subscription", (*App).cancel},
	"watch":     {"refresh the subscription periodically", (*App).watch},
	"subscribe": {"subscribe to a plan directly", (*App).subscribe},
	"picks":     {"list stock picks (subscribers only)", (*App).picks},
	"quote":     {"show a quote for a symbol (subscribers only)", (*App).quote},
	"chart":     {"show price history for symbols (subscribers only)", (*App).chart},
	"contact":   {"send a message to support", (*App).contact},
}

var commandOrder = []string{
	"login", "register", "logout", "status", "refresh", "watch",
	"plans", "checkout", "subscribe", "cancel",
	"picks", "quote", "chart", "contact",
}

// Run восстанавливает сессию и выполняет команду args[0].
// Если за время команды сервер отклонил токен, возвращает ErrSessionExpired.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()
		return ErrUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		a.usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}

	a.session.Restore(ctx)
	err := cmd.run(a, ctx, args[1:])

	if a.expired.Load() {
		fmt.Fprintln(a.out, ErrSessionExpired.Error())
		return ErrSessionExpired
	}
	return err
}

func (a *App) usage() {
	fmt.Fprintln(a.out, "usage: stockpicks <command> [flags]")
	fmt.Fprintln(a.out)
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %s\t%s\n", name, commands[name].summary)
	}
	_ = w.Flush()
}

func (a *App) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s", ErrUsage, err.Error())
	}
	return nil
}

func passwordFrom(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(passwordEnv)
}

func (a *App) login(ctx context.Context, args []string) error {
	const op = "stockpicks.login"

	fs := a.flagSet("login")
	email := fs.StringP("email", "e", "", "account email")
	password := fs.StringP("password", "p", "", "account password (or "+passwordEnv+")")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("%w: --email is required", ErrUsage)
	}

	user, err := a.session.Login(ctx, *email, passwordFrom(*password))
	if err != nil {
		return fmt.Errorf("%s: %w", op, describeAuthError(err))
	}
	fmt.Fprintf(a.out, "logged in as %s\n", user.Email)

	a.session.RefreshEntitlement(ctx, true)
	a.printStatus()
	return nil
}

func (a *App) register(ctx context.Context, args []string) error {
	const op = "stockpicks.register"

	fs := a.flagSet("register")
	var req models.RegisterRequest
	fs.StringVarP(&req.Email, "email", "e", "", "account email")
	password := fs.StringP("password", "p", "", "account password (or "+passwordEnv+")")
	fs.StringVar(&req.FirstName, "first-name", "", "first name")
	fs.StringVar(&req.LastName, "last-name", "", "last name")
	if err := parse(fs, args); err != nil {
		return err
	}
	req.Password = passwordFrom(*password)

	user, err := a.session.Register(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, describeAuthError(err))
	}
	fmt.Fprintf(a.out, "registered and logged in as %s\n", user.Email)

	a.session.RefreshEntitlement(ctx, true)
	a.printStatus()
	return nil
}

// describeAuthError оставляет в ошибке сообщение сервера, если оно есть.
func describeAuthError(err error) error {
	var authErr *apiclient.AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return fmt.Errorf("%s: %w", authErr.Message, err)
	}
	return err
}

func (a *App) logout(_ context.Context, args []string) error {
	if err := parse(a.flagSet("logout"), args); err != nil {
		return err
	}
	a.session.Logout()
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func (a *App) status(ctx context.Context, args []string) error {
	fs := a.flagSet("status")
	refresh := fs.Bool("refresh", false, "re-check the subscription before printing")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *refresh {
		a.session.RefreshEntitlement(ctx, true)
	}
	a.printStatus()
	return nil
}

func (a *App) refresh(ctx context.Context, args []string) error {
	fs := a.flagSet("refresh")
	force := fs.BoolP("force", "f", false, "ignore the minimum refresh interval")
	if err := parse(fs, args); err != nil {
		return err
	}
	if !a.session.IsAuthenticated() {
		return ErrNotLoggedIn
	}
	a.session.RefreshEntitlement(ctx, *force)
	a.printStatus()
	return nil
}

func (a *App) plans(ctx context.Context, args []string) error {
	const op = "stockpicks.plans"

	if err := parse(a.flagSet("plans"), args); err != nil {
		return err
	}
	plans, err := a.client.Plans(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tMONTHS\tFEATURES")
	for _, p := range plans {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%s\n", p.ID, p.Name, p.Price, p.DurationMonths, strings.Join(p.Features, ", "))
	}
	return w.Flush()
}

func (a *App) checkout(ctx context.Context, args []string) error {
	const op = "stockpicks.checkout"

	fs := a.flagSet("checkout")
	plan := fs.String("plan", "", "plan id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *plan == "" {
		return fmt.Errorf("%w: --plan is required", ErrUsage)
	}
	if !a.session.IsAuthenticated() {
		return ErrNotLoggedIn
	}

	cs, err := a.client.CreateCheckoutSession(ctx, *plan)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	fmt.Fprintf(a.out, "checkout session %s\nopen %s to complete the payment\n", cs.SessionID, cs.URL)
	return nil
}

func (a *App) cancel(ctx context.Context, args []string) error {
	const op = "stockpicks.cancel"

	if err := parse(a.flagSet("cancel"), args); err != nil {
		return err
	}
	if !a.session.IsAuthenticated() {
		return ErrNotLoggedIn
	}
	if err := a.client.CancelSubscription(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	fmt.Fprintln(a.out, "subscription canceled")

	a.session.RefreshEntitlement(ctx, true)
	a.printStatus()
	return nil
}

// watch обновляет подписку по таймеру и печатает смену состояния.
// Завершается по отмене ctx или когда сессия закрыта.
func (a *App) watch(ctx context.Context, args []string) error {
	const op = "stockpicks.watch"
	log := a.logger.With(slog.String("op", op))

	fs := a.flagSet("watch")
	interval := fs.DurationP("interval", "i", time.Minute, "refresh interval")
	metricsAddr := fs.String("metrics-addr", a.cfg.Metrics.Address, "serve prometheus metrics on this address")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *interval <= 0 {
		return fmt.Errorf("%w: --interval must be positive", ErrUsage)
	}
	if !a.session.IsAuthenticated() {
		return ErrNotLoggedIn
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	unsubscribe := a.session.OnInvalidated(func(session.Reason) { cancel() })
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)

	if *metricsAddr != "" {
		srv := &http.Server{
			Addr:              *metricsAddr,
			Handler:           a.metricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("metrics server listening", slog.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s: %w", op, err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("metrics server shutdown failed", sl.Err(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()

		last := a.session.State()
		a.printStatus()
		for {
			a.session.RefreshEntitlement(gctx, true)
			if st := a.session.State(); st != last && st != session.StateLoggedOut {
				last = st
				a.printStatus()
			}
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	return g.Wait()
}

func (a *App) metricsHandler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}

func (a *App) printStatus() {
	v := a.session.Snapshot()
	fmt.Fprintf(a.out, "state: %s\n", v.State)
	if v.User == nil {
		return
	}

	name := strings.TrimSpace(v.User.FirstName + " " + v.User.LastName)
	if name != "" {
		fmt.Fprintf(a.out, "user: %s (%s)\n", v.User.Email, name)
	} else {
		fmt.Fprintf(a.out, "user: %s\n", v.User.Email)
	}

	if v.Subscription == nil {
		fmt.Fprintln(a.out, "subscription: none")
		return
	}
	fmt.Fprintf(a.out, "subscription: %s\n", v.Subscription.Status)
	if v.Subscription.PlanName != nil {
		fmt.Fprintf(a.out, "plan: %s\n", *v.Subscription.PlanName)
	}
	if v.Subscription.CurrentPeriodEnd != nil {
		fmt.Fprintf(a.out, "period end: %s\n", *v.Subscription.CurrentPeriodEnd)
	}
}

package stockpicks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/entitlement-session/internal/apiclient"
	"github.com/magabrotheeeer/entitlement-session/internal/models"
)

// ErrNotEntitled команда требует активной подписки.
var ErrNotEntitled = errors.New("an active subscription is required, see 'stockpicks plans'")

// requireEntitlement пускает дальше только пользователя с активной подпиской.
// Перед проверкой права обновляются, если они не свежие.
func (a *App) requireEntitlement(ctx context.Context) error {
	if !a.session.IsAuthenticated() {
		return ErrNotLoggedIn
	}
	a.session.RefreshEntitlement(ctx, false)
	if !a.session.HasActiveSubscription() {
		return ErrNotEntitled
	}
	return nil
}

func (a *App) picks(ctx context.Context, args []string) error {
	const op = "stockpicks.picks"

	fs := a.flagSet("picks")
	recent := fs.IntP("recent", "r", 0, "show only the N most recent picks")
	sync := fs.Bool("sync", false, "ask the server to reload picks before listing")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *recent < 0 {
		return fmt.Errorf("%w: --recent must not be negative", ErrUsage)
	}
	if err := a.requireEntitlement(ctx); err != nil {
		return err
	}

	if *sync {
		if err := a.client.SyncStockPicks(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		a.logger.Info("stock picks synced", slog.String("op", op))
	}

	var (
		list []models.StockPick
		err  error
	)
	if *recent > 0 {
		list, err = a.client.RecentStockPicks(ctx, *recent)
	} else {
		list, err = a.client.StockPicks(ctx)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "no stock picks available")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tCOMPANY\tTYPE\tENTRY\tCURRENT\tTARGET\tCHANGE\tDATE")
	for _, p := range list {
		change := "-"
		if pct, ok := p.Performance(); ok {
			change = fmt.Sprintf("%+.2f%%", pct)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%s\t%s\t%s\n",
			p.Symbol, p.CompanyName, p.PickType, p.EntryPrice,
			price(p.CurrentPrice), price(p.TargetPrice), change, p.PickDate)
	}
	return w.Flush()
}

func price(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}

func (a *App) quote(ctx context.Context, args []string) error {
	const op = "stockpicks.quote"

	fs := a.flagSet("quote")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: quote takes exactly one symbol", ErrUsage)
	}
	if err := a.requireEntitlement(ctx); err != nil {
		return err
	}

	symbol := strings.ToUpper(fs.Arg(0))
	q, err := a.client.Quote(ctx, symbol)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	fmt.Fprintf(a.out, "%s %.2f (%+.2f, %+.2f%%)\n", symbol, q.Current, q.Change, q.ChangePercent)
	fmt.Fprintf(a.out, "open %.2f  high %.2f  low %.2f  prev close %.2f\n", q.Open, q.High, q.Low, q.PreviousClose)
	return nil
}

// chart печатает свечи по одному тикеру или сводку по нескольким.
func (a *App) chart(ctx context.Context, args []string) error {
	const op = "stockpicks.chart"

	fs := a.flagSet("chart")
	period := fs.String("period", apiclient.DefaultChartPeriod, "price history period (1d, 5d, 1mo, 3mo, 6mo, 1y)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: chart needs at least one symbol", ErrUsage)
	}
	if err := a.requireEntitlement(ctx); err != nil {
		return err
	}

	symbols := make([]string, 0, fs.NArg())
	for _, s := range fs.Args() {
		symbols = append(symbols, strings.ToUpper(s))
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	if len(symbols) == 1 {
		data, err := a.client.ChartData(ctx, symbols[0], *period)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		fmt.Fprintln(w, "DATE\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME")
		for _, c := range data.Candles.Rows() {
			fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.0f\n",
				c.Time.Format("2006-01-02"), c.Open, c.High, c.Low, c.Close, c.Volume)
		}
		return w.Flush()
	}

	batch, err := a.client.BatchChartData(ctx, symbols, *period)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	fmt.Fprintln(w, "SYMBOL\tFIRST\tLAST\tCHANGE\tCANDLES")
	for _, symbol := range symbols {
		data, ok := batch[symbol]
		rows := data.Candles.Rows()
		if !ok || len(rows) == 0 {
			fmt.Fprintf(w, "%s\t-\t-\t-\t0\n", symbol)
			continue
		}
		first, last := rows[0].Close, rows[len(rows)-1].Close
		change := "-"
		if first != 0 {
			change = fmt.Sprintf("%+.2f%%", (last-first)/first*100)
		}
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%s\t%d\n", symbol, first, last, change, len(rows))
	}
	return w.Flush()
}

func (a *App) subscribe(ctx context.Context, args []string) error {
	const op = "stockpicks.subscribe"

	fs := a.flagSet("subscribe")
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

	if err := a.client.CreateSubscription(ctx, *plan); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	fmt.Fprintf(a.out, "subscribed to %s\n", *plan)

	a.session.RefreshEntitlement(ctx, true)
	a.printStatus()
	return nil
}

// contact отправляет сообщение в поддержку. Имя и email берутся из сессии, если не заданы.
func (a *App) contact(ctx context.Context, args []string) error {
	const op = "stockpicks.contact"

	fs := a.flagSet("contact")
	var req models.ContactRequest
	fs.StringVar(&req.Name, "name", "", "your name")
	fs.StringVarP(&req.Email, "email", "e", "", "reply address")
	fs.StringVarP(&req.Subject, "subject", "s", "", "message subject")
	fs.StringVarP(&req.Message, "message", "m", "", "message text")
	if err := parse(fs, args); err != nil {
		return err
	}
	if u := a.session.User(); u != nil {
		if req.Name == "" {
			req.Name = u.FirstName
		}
		if req.Email == "" {
			req.Email = u.Email
		}
	}

	if err := a.validate.Struct(req); err != nil {
		var validateErr validator.ValidationErrors
		if errors.As(err, &validateErr) {
			fields := make([]string, 0, len(validateErr))
			for _, fe := range validateErr {
				fields = append(fields, strings.ToLower(fe.Field()))
			}
			return fmt.Errorf("%w: invalid %s", ErrUsage, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.client.SubmitContact(ctx, req); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	fmt.Fprintln(a.out, "message sent, we will reply to", req.Email)
	return nil
}

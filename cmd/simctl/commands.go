package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cryptosim/cryptosim/internal/ledger"
	"github.com/cryptosim/cryptosim/internal/loan"
	"github.com/cryptosim/cryptosim/internal/market"
	"github.com/cryptosim/cryptosim/internal/money"
	"github.com/cryptosim/cryptosim/internal/notification"
	"github.com/cryptosim/cryptosim/internal/simulator"
)

// opener opens the configured session and returns a func that flushes and
// releases it.
type opener func(ctx context.Context) (*simulator.Simulator, func() error, error)

type cli struct {
	open   opener
	prices market.PriceSource
}

func newRootCmd(open opener, prices market.PriceSource) *cobra.Command {
	c := &cli{open: open, prices: prices}

	root := &cobra.Command{
		Use:          "simctl",
		Short:        "Operate a Bitcoin trading simulator portfolio",
		SilenceUsage: true,
	}

	root.AddCommand(
		c.portfolioCmd(),
		c.historyCmd(),
		c.buyCmd(),
		c.sellCmd(),
		c.loanCmd(),
		c.checkCmd(),
	)
	return root
}

// withSession runs fn against an opened session and always flushes it.
func (c *cli) withSession(cmd *cobra.Command, fn func(ctx context.Context, sim *simulator.Simulator, out io.Writer) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sim, closeFn, err := c.open(ctx)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := closeFn(); err == nil && cerr != nil {
			err = fmt.Errorf("close session: %w", cerr)
		}
	}()
	return fn(ctx, sim, cmd.OutOrStdout())
}

func (c *cli) portfolioCmd() *cobra.Command {
	var price string
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Show balances, the active loan and the portfolio value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(ctx context.Context, sim *simulator.Simulator, out io.Writer) error {
				p := sim.Store.Snapshot()
				fmt.Fprintf(out, "USD: %s\n", p.USDBalance.StringFixed(money.CurrencyPlaces))
				fmt.Fprintf(out, "BTC: %s\n", p.BTCBalance.StringFixed(money.AssetPlaces))
				if px, err := c.resolvePrice(ctx, price); err == nil {
					fmt.Fprintf(out, "Value @ %s: %s\n", px.StringFixed(money.CurrencyPlaces), money.RoundCurrency(p.Valuation(px)).StringFixed(money.CurrencyPlaces))
				}
				if p.Loan != nil {
					fmt.Fprintf(out, "Loan: %s due %s\n", p.Loan.Principal.StringFixed(money.CurrencyPlaces), p.Loan.DueDate.Format(time.RFC3339))
				} else {
					fmt.Fprintln(out, "Loan: none")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&price, "price", "", "BTC price in USD (defaults to the live ticker)")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List executed trades, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(_ context.Context, sim *simulator.Simulator, out io.Writer) error {
				txs := sim.Trades.History(limit)
				if len(txs) == 0 {
					fmt.Fprintln(out, "no transactions")
					return nil
				}
				for _, tx := range txs {
					fmt.Fprintf(out, "%s  %-4s  %s BTC  %s USD  @ %s  %s\n",
						tx.Date.Format(time.RFC3339), tx.Type,
						tx.BTCAmount.StringFixed(money.AssetPlaces),
						tx.USDAmount.StringFixed(money.CurrencyPlaces),
						tx.PriceAtTransaction.StringFixed(money.CurrencyPlaces),
						tx.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many trades (0 for all)")
	return cmd
}

func (c *cli) buyCmd() *cobra.Command {
	var price string
	cmd := &cobra.Command{
		Use:   "buy <usd-amount>",
		Short: "Spend USD on BTC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			return c.withSession(cmd, func(ctx context.Context, sim *simulator.Simulator, out io.Writer) error {
				px, _ := c.resolvePrice(ctx, price)
				_, notice, err := sim.Trades.Buy(ctx, amount, px)
				return report(out, notice, err)
			})
		},
	}
	cmd.Flags().StringVar(&price, "price", "", "execution price in USD (defaults to the live ticker)")
	return cmd
}

func (c *cli) sellCmd() *cobra.Command {
	var price string
	cmd := &cobra.Command{
		Use:   "sell <btc-amount>",
		Short: "Sell BTC for USD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			return c.withSession(cmd, func(ctx context.Context, sim *simulator.Simulator, out io.Writer) error {
				px, _ := c.resolvePrice(ctx, price)
				_, notice, err := sim.Trades.Sell(ctx, amount, px)
				return report(out, notice, err)
			})
		},
	}
	cmd.Flags().StringVar(&price, "price", "", "execution price in USD (defaults to the live ticker)")
	return cmd
}

func (c *cli) loanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loan",
		Short: "Take, repay or inspect the collateralized USD loan",
	}

	var days int
	take := &cobra.Command{
		Use:   "take <amount>",
		Short: "Borrow USD against the current balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			return c.withSession(cmd, func(ctx context.Context, sim *simulator.Simulator, out io.Writer) error {
				_, notice, err := sim.Loans.Take(ctx, amount, days)
				return report(out, notice, err)
			})
		},
	}
	take.Flags().IntVarP(&days, "days", "d", 7, "repayment period in days (1, 3, 7 or 30)")

	repay := &cobra.Command{
		Use:   "repay",
		Short: "Repay the active loan with accrued interest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(ctx context.Context, sim *simulator.Simulator, out io.Writer) error {
				_, notice, err := sim.Loans.Repay(ctx)
				if err == nil && notice == nil {
					fmt.Fprintln(out, "no active loan")
					return nil
				}
				return report(out, notice, err)
			})
		},
	}

	quote := &cobra.Command{
		Use:   "quote",
		Short: "Show what the active loan costs right now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(_ context.Context, sim *simulator.Simulator, out io.Writer) error {
				q, err := sim.Loans.Quote()
				if errors.Is(err, loan.ErrNoLoan) {
					fmt.Fprintln(out, "no active loan")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Principal:   %s\n", q.Principal.StringFixed(money.CurrencyPlaces))
				fmt.Fprintf(out, "Accrued:     %s\n", q.AccruedInterest.StringFixed(money.CurrencyPlaces))
				fmt.Fprintf(out, "Repay now:   %s\n", q.RepayNow.StringFixed(money.CurrencyPlaces))
				fmt.Fprintf(out, "Due at term: %s\n", q.DueAtTerm.StringFixed(money.CurrencyPlaces))
				fmt.Fprintf(out, "Penalty:     %s\n", q.Penalty.StringFixed(money.CurrencyPlaces))
				fmt.Fprintf(out, "Due date:    %s\n", q.DueDate.Format(time.RFC3339))
				if q.Overdue {
					fmt.Fprintln(out, "Status:      overdue")
				} else {
					fmt.Fprintf(out, "Remaining:   %s\n", q.Remaining.Round(time.Minute))
				}
				return nil
			})
		},
	}

	var previewDays int
	preview := &cobra.Command{
		Use:   "preview <amount>",
		Short: "Price a prospective loan without taking it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			return c.withSession(cmd, func(_ context.Context, sim *simulator.Simulator, out io.Writer) error {
				pv, err := sim.Loans.Preview(amount, previewDays)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Interest:        %s\n", pv.Interest.StringFixed(money.CurrencyPlaces))
				fmt.Fprintf(out, "Total repayment: %s\n", pv.TotalRepayment.StringFixed(money.CurrencyPlaces))
				fmt.Fprintf(out, "Max loan:        %s\n", pv.MaxLoan.StringFixed(money.CurrencyPlaces))
				if pv.ExceedsMax {
					fmt.Fprintln(out, "Amount exceeds the maximum loan")
				}
				return nil
			})
		},
	}
	preview.Flags().IntVarP(&previewDays, "days", "d", 7, "repayment period in days (1, 3, 7 or 30)")

	cmd.AddCommand(take, repay, quote, preview)
	return cmd
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run one loan monitor pass: warn when due soon, penalize when overdue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(ctx context.Context, sim *simulator.Simulator, out io.Writer) error {
				sim.Store.ClearNotification()
				sim.Monitor.Check(ctx)
				if n := sim.Store.Notification(); n != nil {
					return report(out, n, nil)
				}
				fmt.Fprintln(out, "nothing to do")
				return nil
			})
		},
	}
}

// resolvePrice parses an explicit price or asks the price source.
func (c *cli) resolvePrice(ctx context.Context, explicit string) (decimal.Decimal, error) {
	if explicit != "" {
		return decimal.NewFromString(explicit)
	}
	if c.prices == nil {
		return decimal.Zero, market.ErrUnavailable
	}
	return c.prices.CurrentPrice(ctx)
}

// report prints the operation's notification. Rejections are returned so the
// process exits non-zero.
func report(out io.Writer, n *notification.Notification, err error) error {
	if n != nil {
		fmt.Fprintf(out, "[%s] %s", n.Severity, n.MessageKey)
		for k, v := range n.Payload {
			fmt.Fprintf(out, " %s=%v", k, v)
		}
		fmt.Fprintln(out)
	}
	var rej *ledger.RejectError
	if errors.As(err, &rej) {
		return fmt.Errorf("rejected: %s", rej.Reason)
	}
	return err
}

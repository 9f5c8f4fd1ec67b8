// Package cli команды marketctl для операционных задач.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/service"
)

type MonitorRunner interface {
	Run(ctx context.Context, now time.Time) ([]service.MonitorAlert, error)
}

type JobFunder interface {
	FundJob(ctx context.Context, in service.FundJobInput) (*models.Job, *models.Transaction, error)
}

type FlagSeeder interface {
	Seed(ctx context.Context, r io.Reader) ([]models.FeatureFlag, error)
}

type PointsDeductor interface {
	DeductPoints(ctx context.Context, actor models.Actor, in service.DeductPointsInput) (int, error)
}

// Runtime зависимости команд. Close вызывается после выполнения команды.
type Runtime struct {
	Migrate    func(ctx context.Context) ([]string, error)
	Monitor    MonitorRunner
	Payments   JobFunder
	Flags      FlagSeeder
	Reputation PointsDeductor
	Close      func()
}

// Opener поднимает зависимости лениво, чтобы --help не требовал базы.
type Opener func(ctx context.Context) (*Runtime, error)

// operatorActor от имени этого актора CLI выполняет действия поддержки.
var operatorActor = models.Actor{ID: uuid.Nil, Roles: models.Roles{models.RoleAdmin}}

func BuildCLI(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "marketctl",
		Short:         "Операционные команды маркетплейса Team4Job",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		buildMigrateCommand(open),
		buildMonitorCommand(open),
		buildFundJobCommand(open),
		buildSeedFlagsCommand(open),
		buildDeductReputationCommand(open),
	)
	return root
}

// withRuntime открывает зависимости на время одной команды.
func withRuntime(cmd *cobra.Command, open Opener, fn func(ctx context.Context, rt *Runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := open(ctx)
	if err != nil {
		return err
	}
	if rt.Close != nil {
		defer rt.Close()
	}
	return fn(ctx, rt)
}

func buildMigrateCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить новые SQL миграции",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				applied, err := rt.Migrate(ctx)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(applied) == 0 {
					fmt.Fprintln(out, "Новых миграций нет")
					return nil
				}
				for _, name := range applied {
					fmt.Fprintf(out, "applied %s\n", name)
				}
				return nil
			})
		},
	}
}

func buildMonitorCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Один проход проверок зависших заказов и споров",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				alerts, runErr := rt.Monitor.Run(ctx, time.Now())
				out := cmd.OutOrStdout()
				if len(alerts) == 0 && runErr == nil {
					fmt.Fprintln(out, "Критичных проблем не найдено")
					return nil
				}
				if len(alerts) > 0 {
					renderAlerts(out, alerts)
				}
				if runErr != nil {
					return fmt.Errorf("monitor: %w", runErr)
				}
				return nil
			})
		},
	}
}

func renderAlerts(out io.Writer, alerts []service.MonitorAlert) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"Check", "Level", "Count", "IDs"})
	for _, a := range alerts {
		tw.AppendRow(table.Row{a.Check, a.Level, len(a.IDs), strings.Join(a.IDs, "\n")})
	}
	tw.Render()
}

func buildFundJobCommand(open Opener) *cobra.Command {
	var (
		jobID  string
		amount float64
		fee    float64
	)
	cmd := &cobra.Command{
		Use:   "fund-job",
		Short: "Зачислить оплату заказа в эскроу без платёжного шлюза",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(jobID)
			if err != nil {
				return fmt.Errorf("fund-job: некорректный --job: %w", err)
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				job, txn, err := rt.Payments.FundJob(ctx, service.FundJobInput{JobID: id, Amount: amount, PlatformFee: fee})
				if err != nil {
					return fmt.Errorf("fund-job: %w", err)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"Job", "Status", "Transaction", "Amount", "Start OTP"})
				otp := ""
				if job.StartOTP != nil {
					otp = *job.StartOTP
				}
				tw.AppendRow(table.Row{job.ID, job.Status.DisplayName(), txn.ID, txn.Amount, otp})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "id заказа")
	cmd.Flags().Float64Var(&amount, "amount", 0, "сумма оплаты")
	cmd.Flags().Float64Var(&fee, "fee", 0, "комиссия платформы")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func buildSeedFlagsCommand(open Opener) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-flags",
		Short: "Загрузить feature флаги из YAML файла",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("seed-flags: %w", err)
			}
			defer f.Close()

			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				applied, err := rt.Flags.Seed(ctx, f)
				if err != nil {
					return fmt.Errorf("seed-flags: %w", err)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"Flag", "Enabled", "Description"})
				for _, flag := range applied {
					tw.AppendRow(table.Row{flag.Name, flag.IsEnabled, flag.Description})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "путь к YAML с флагами")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func buildDeductReputationCommand(open Opener) *cobra.Command {
	var (
		userID string
		points int
		reason string
		jobID  string
	)
	cmd := &cobra.Command{
		Use:   "deduct-reputation",
		Short: "Списать очки репутации установщика",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := service.DeductPointsInput{Points: points, Reason: reason}
			var err error
			if in.UserID, err = uuid.Parse(userID); err != nil {
				return fmt.Errorf("deduct-reputation: некорректный --user: %w", err)
			}
			if jobID != "" {
				id, err := uuid.Parse(jobID)
				if err != nil {
					return fmt.Errorf("deduct-reputation: некорректный --job: %w", err)
				}
				in.JobID = &id
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				balance, err := rt.Reputation.DeductPoints(ctx, operatorActor, in)
				if err != nil {
					return fmt.Errorf("deduct-reputation: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %s: reputation %d\n", in.UserID, balance)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "id установщика")
	cmd.Flags().IntVar(&points, "points", 0, "сколько очков списать")
	cmd.Flags().StringVar(&reason, "reason", "", "причина списания")
	cmd.Flags().StringVar(&jobID, "job", "", "заказ, по которому снимается отстранение")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("points")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

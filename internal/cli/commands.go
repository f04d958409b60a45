// Package cli provides ordersctl, the operator command line for the order
// service. It shares configuration and wiring with the HTTP server.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/2b33rs/codevision-backend/internal/app"
	"github.com/2b33rs/codevision-backend/internal/config"
	"github.com/2b33rs/codevision-backend/internal/db"
	"github.com/2b33rs/codevision-backend/internal/order"
	"github.com/2b33rs/codevision-backend/internal/workflow"
)

type root struct {
	cfg      *config.Config
	services *app.Services
	migrate  func(config.PostgresConfig, db.Direction) error
	closers  []func()
}

type Option func(*root)

// WithConfig skips loading configuration from the environment.
func WithConfig(cfg *config.Config) Option {
	return func(r *root) { r.cfg = cfg }
}

// WithServices skips connecting to the database.
func WithServices(s *app.Services) Option {
	return func(r *root) { r.services = s }
}

func withMigrate(fn func(config.PostgresConfig, db.Direction) error) Option {
	return func(r *root) { r.migrate = fn }
}

func NewRootCommand(opts ...Option) *cobra.Command {
	r := &root{migrate: db.Migrate}
	for _, opt := range opts {
		opt(r)
	}

	var configPath string
	rootCmd := &cobra.Command{
		Use:           "ordersctl",
		Short:         "Operate the custom apparel order service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if r.cfg != nil {
				return nil
			}
			cfg, err := config.Load(".env", configPath)
			if err != nil {
				return err
			}
			r.cfg = cfg
			app.SetupLogger(cfg.App)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			for i := len(r.closers) - 1; i >= 0; i-- {
				r.closers[i]()
			}
			r.closers = nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")

	rootCmd.AddCommand(
		r.migrateCommand(),
		r.restockCommand(),
		r.statusCommand(),
		r.complaintCommand(),
		r.productsCommand(),
	)
	return rootCmd
}

// Execute runs ordersctl with the process arguments.
func Execute() error {
	return NewRootCommand().Execute()
}

func (r *root) connect(ctx context.Context) (*app.Services, error) {
	if r.services != nil {
		return r.services, nil
	}
	pg, err := db.New(ctx, r.cfg.Postgres)
	if err != nil {
		return nil, err
	}
	publisher := app.NewPublisher(r.cfg.Kafka)
	r.closers = append(r.closers, pg.Close)
	r.services = app.Wire(r.cfg, order.NewRepository(pg.Pool), publisher)
	return r.services, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

func (r *root) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply or revert the database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(db.Up), string(db.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := db.Direction(args[0])
			if err := r.migrate(r.cfg.Postgres, dir); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "migrations %s: done\n", dir)
			return err
		},
	}
}

func (r *root) restockCommand() *cobra.Command {
	var productID string
	var quantity int
	cmd := &cobra.Command{
		Use:   "restock",
		Short: "Create an internal restock order for a standard product",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.FromString(productID)
			if err != nil {
				return fmt.Errorf("invalid --product %q: %w", productID, err)
			}
			s, err := r.connect(cmd.Context())
			if err != nil {
				return err
			}
			res, err := s.Orders.CreateInternalRestockOrder(cmd.Context(), id, quantity)
			if err != nil {
				return err
			}
			if res.NeedsAttention() {
				log.Warn().Err(res.Err()).Str("order_number", res.Order.OrderNumber).Msg("restock order needs attention")
			}
			return printJSON(cmd, res.Order)
		},
	}
	cmd.Flags().StringVar(&productID, "product", "", "standard product id")
	cmd.Flags().IntVar(&quantity, "quantity", 0, "units to produce")
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("quantity")
	return cmd
}

func (r *root) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <compositeKey> <status>",
		Short: "Set the status of a position (order.pos) or production order (order.pos.seq)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := r.connect(cmd.Context())
			if err != nil {
				return err
			}
			outcome, err := s.Statuses.UpdateStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if !outcome.Changed {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: unchanged\n", outcome.Key)
				return err
			}
			msg := fmt.Sprintf("%s: %s", outcome.Key, args[1])
			if outcome.Cascaded && outcome.Position != nil {
				msg += fmt.Sprintf(" (position %s now %s)", outcome.Key.Position(), outcome.Position.Status)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return err
		},
	}
}

func (r *root) complaintCommand() *cobra.Command {
	var positionID, reason, kind, note string
	var newOrder bool
	cmd := &cobra.Command{
		Use:   "complaint",
		Short: "Record a complaint and cancel the position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.FromString(positionID)
			if err != nil {
				return fmt.Errorf("invalid --position %q: %w", positionID, err)
			}
			s, err := r.connect(cmd.Context())
			if err != nil {
				return err
			}
			res, err := s.Orders.CreateComplaint(cmd.Context(), workflow.ComplaintInput{
				PositionID:     id,
				Reason:         order.ComplaintReason(reason),
				Kind:           order.ComplaintKind(kind),
				Note:           note,
				CreateNewOrder: newOrder,
			})
			if err != nil {
				return err
			}
			if err := printJSON(cmd, res.Complaint); err != nil {
				return err
			}
			if stepErr := res.Err(); stepErr != nil {
				return errors.Join(errors.New("complaint recorded, but some steps failed"), stepErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&positionID, "position", "", "position id")
	cmd.Flags().StringVar(&reason, "reason", "", "complaint reason, e.g. WRONG_SIZE")
	cmd.Flags().StringVar(&kind, "kind", string(order.ComplaintExtern), "INTERN or EXTERN")
	cmd.Flags().StringVar(&note, "note", "", "free text note")
	cmd.Flags().BoolVar(&newOrder, "new-order", false, "raise a replacement order")
	_ = cmd.MarkFlagRequired("position")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func (r *root) productsCommand() *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List standard products with their stock, lowest remaining stock first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := r.connect(cmd.Context())
			if err != nil {
				return err
			}
			products, err := s.Catalog.ListProducts(cmd.Context(), query)
			if err != nil {
				return err
			}
			for _, p := range products {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s | %s | %s | stock %d | in production %d | remaining %d\n",
					p.ID, p.Name, p.Size, p.CurrentStock, p.AmountInProduction, p.RemainingStock); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "full-text search")
	return cmd
}

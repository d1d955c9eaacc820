package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"myplaces/internal/buildinfo"
	"myplaces/internal/config"
	"myplaces/internal/integrations"
	"myplaces/internal/integrations/csvfile"
	"myplaces/internal/logging"
	"myplaces/internal/mapping"
	"myplaces/internal/model"
	"myplaces/internal/placelist"
	"myplaces/internal/provider"
	"myplaces/internal/store"
)

// defaultDB is used when neither --db nor DATABASE_URL names a store.
const defaultDB = "sqlite:myplaces.db"

type app struct {
	configPath string
	dsn        string
	verbose    bool

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "placesctl",
		Short:         "Manage saved places from the command line",
		Long:          `placesctl lists, adds and deletes saved places and resolves addresses with the configured geocoder.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "config.yaml", "Config file path")
	root.PersistentFlags().StringVar(&a.dsn, "db", "", "Store DSN (overrides config; default "+defaultDB+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(a.listCmd(), a.addCmd(), a.deleteCmd(), a.importCmd(), a.geocodeCmd(), a.reverseCmd(), versionCmd())
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	level := "warn"
	if a.verbose {
		level = "debug"
	}
	log, err := logging.New(level, "console")
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	dsn := a.dsn
	if dsn == "" {
		dsn = a.cfg.Store.DSN
	}
	if dsn == "" {
		dsn = defaultDB
	}
	a.log.Debug("opening store", zap.String("dsn", dsn))
	return store.Open(ctx, dsn, a.cfg.Store.MongoDB)
}

func (a *app) listCmd() *cobra.Command {
	var (
		sortKey string
		desc    bool
		query   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List places",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			l := placelist.New(st, a.log)
			l.SetSortKey(model.ParseSortKey(sortKey))
			if desc {
				l.ToggleDirection()
			}
			if err := l.Reload(ctx); err != nil {
				return err
			}
			if query != "" {
				l.Search(query)
			}
			return printPlaces(cmd, l.Visible())
		},
	}
	cmd.Flags().StringVarP(&sortKey, "sort", "s", "name", "Sort key: name or rating")
	cmd.Flags().BoolVarP(&desc, "desc", "d", false, "Sort descending")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only places whose name, location or type contains this text")
	return cmd
}

func printPlaces(cmd *cobra.Command, places []model.Place) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tNAME\tTYPE\tRATING\tLOCATION")
	for i, p := range places {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1f\t%s\n", i, p.ID, p.Name, p.Type, p.Rating, p.Location)
	}
	return w.Flush()
}

func (a *app) addCmd() *cobra.Command {
	var (
		in    model.PlaceInput
		image string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a place",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if image != "" {
				b, err := os.ReadFile(image)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				in.ImageData = b
			}
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			l := placelist.New(st, a.log)
			p := model.Place{}
			in.Apply(&p)
			saved, err := l.Save(ctx, p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), saved.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in.Name, "name", "n", "", "Place name")
	cmd.Flags().StringVarP(&in.Location, "location", "l", "", "Free-text address")
	cmd.Flags().StringVarP(&in.Type, "type", "t", "", "Kind of place, e.g. cafe")
	cmd.Flags().Float64VarP(&in.Rating, "rating", "r", 0, "Rating from 0 to 5")
	cmd.Flags().StringVar(&image, "image", "", "Image file to attach")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	var (
		row     int
		sortKey string
		desc    bool
	)
	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a place by id, or by row number of the sorted list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if (len(args) == 1) == (row >= 0) {
				return fmt.Errorf("give either an id or --row")
			}
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 1 {
				return st.DeletePlace(ctx, args[0])
			}
			l := placelist.New(st, a.log)
			l.SetSortKey(model.ParseSortKey(sortKey))
			if desc {
				l.ToggleDirection()
			}
			if err := l.Reload(ctx); err != nil {
				return err
			}
			p, err := l.At(row)
			if err != nil {
				return err
			}
			if err := l.DeleteAt(ctx, row); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (%s)\n", p.ID, p.Name)
			return nil
		},
	}
	cmd.Flags().IntVar(&row, "row", -1, "Row number as shown by list")
	cmd.Flags().StringVarP(&sortKey, "sort", "s", "name", "Sort key the row number refers to")
	cmd.Flags().BoolVarP(&desc, "desc", "d", false, "Row numbers refer to the descending order")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import places from a CSV or TSV file with a header row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := integrations.Import(ctx, csvfile.Source{Path: args[0]}, st, a.log)
			if err != nil {
				return err
			}
			for _, rej := range res.Rejected {
				fmt.Fprintln(cmd.ErrOrStderr(), "skipped", rej.Error())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d\n", len(res.Imported), len(res.Rejected))
			if strict && len(res.Rejected) > 0 {
				return fmt.Errorf("%d rows rejected", len(res.Rejected))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error when any row is rejected")
	return cmd
}

func (a *app) geocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode <address>",
		Short: "Resolve an address to coordinates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := provider.Build(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}
			defer set.Close()
			pms, err := set.Geocoder.Forward(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printPlacemarks(cmd, pms)
		},
	}
}

func (a *app) reverseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reverse <lat> <lng>",
		Short: "Resolve coordinates to an address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("lat: %w", err)
			}
			lng, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("lng: %w", err)
			}
			c := model.Coordinate{Lat: lat, Lng: lng}
			if !c.Valid() {
				return fmt.Errorf("coordinate out of range: %v,%v", lat, lng)
			}
			set, err := provider.Build(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}
			defer set.Close()
			pms, err := set.Geocoder.Reverse(cmd.Context(), c)
			if err != nil {
				return err
			}
			return printPlacemarks(cmd, pms)
		},
	}
}

func printPlacemarks(cmd *cobra.Command, pms []mapping.Placemark) error {
	if len(pms) == 0 {
		return fmt.Errorf("no match")
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LAT\tLNG\tADDRESS\tLOCALITY")
	for _, p := range pms {
		if p.Coordinate == nil {
			continue
		}
		fmt.Fprintf(w, "%.6f\t%.6f\t%s\t%s\n", p.Coordinate.Lat, p.Coordinate.Lng, mapping.FormatAddress(p), p.Locality)
	}
	return w.Flush()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// no config needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/youthguide-na/opportunity-finder/internal/logger"
	"github.com/youthguide-na/opportunity-finder/internal/metrics"
	"github.com/youthguide-na/opportunity-finder/internal/opportunity"
	"github.com/youthguide-na/opportunity-finder/internal/retrieval"
	"github.com/youthguide-na/opportunity-finder/internal/utils"
)

const (
	PromptNewSearch     = "New search"
	PromptDetails       = "Show details"
	PromptReportByType  = "Report by type"
	PromptResultsToFile = "Dump results to file"
	PromptExit          = "Exit"
	PromptBack          = "back"

	outputTable = "table"
	outputJSON  = "json"
)

var errExit = errors.New("exit requested")

var actionPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptNewSearch, PromptDetails, PromptReportByType, PromptResultsToFile, PromptExit},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search opportunities matching a free text query",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		search(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	addSearchFlags(searchCmd)

	viper.BindPFlag("metrics.file", searchCmd.Flags().Lookup("metrics-file"))
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("offline", false, "search the fallback dataset with lexical ranking only")
	cmd.Flags().IntP("top-k", "k", 0, "number of results (default from retrieval.top-k)")
	cmd.Flags().StringSliceP("type", "t", nil, "keep only these types (Job, Training, Internship, Scholarship)")
	cmd.Flags().StringP("location", "l", "", "keep only opportunities in this location")
	cmd.Flags().String("skills", "", "comma separated profile skills")
	cmd.Flags().String("interests", "", "comma separated profile interests")
	cmd.Flags().String("profile-location", "", "profile location used for boosting")
	cmd.Flags().String("preferred-types", "", "comma separated preferred types used for boosting")
	cmd.Flags().StringP("output", "o", outputTable, "output format: table or json")
	cmd.Flags().BoolP("yes", "y", false, "do not open the interactive browser after printing results")
	cmd.Flags().String("metrics-file", "", "write prometheus metrics to this file on exit")
}

func search(cmd *cobra.Command, args []string) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Debug("starting the search", zap.String("version", version))

	registry := prometheus.NewRegistry()
	m := metrics.New()
	if err := m.Register(registry); err != nil {
		logger.Fatal("registering metrics", zap.Error(err))
	}

	err = runSearch(cmd, args, config, logger, m)

	if config.Metrics != nil && config.Metrics.File != "" {
		if werr := prometheus.WriteToTextfile(config.Metrics.File, registry); werr != nil {
			logger.Warn("writing metrics file", zap.Error(werr))
		}
	}

	if err != nil && !errors.Is(err, errExit) {
		logger.Fatal("search failed", zap.Error(err))
	}
}

func runSearch(cmd *cobra.Command, args []string, config *Config, log *zap.Logger, m *metrics.Metrics) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	comps, err := buildComponents(ctx, config, log, m)
	if err != nil {
		return fmt.Errorf("building components: %w", err)
	}
	defer comps.Close()

	if comps.redis != nil && config.Redis.Channel != "" {
		go func() {
			err := comps.loader.SubscribeInvalidations(ctx, comps.redis, config.Redis.Channel)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("watching data changes stopped", zap.Error(err))
			}
		}()
	}

	flags := cmd.Flags()
	offline, _ := flags.GetBool("offline")
	autoYes, _ := flags.GetBool("yes")
	output, _ := flags.GetString("output")
	output = strings.ToLower(strings.TrimSpace(output))
	if output != outputTable && output != outputJSON {
		return fmt.Errorf("unknown output format %q", output)
	}

	opts := searchOptions(cmd, config)

	var query string
	if len(args) == 1 {
		query = args[0]
	} else if query, err = askQuery(); err != nil {
		return err
	}

	for {
		result, err := comps.engine.Retrieve(ctx, query, opts, offline)
		if err != nil {
			return err
		}

		if err := printResult(cmd.OutOrStdout(), result, output); err != nil {
			return err
		}

		if autoYes || output == outputJSON {
			return nil
		}

		query, err = browse(cmd.OutOrStdout(), log, result)
		if err != nil {
			return err
		}
	}
}

// searchOptions merges the profile from the config with the flags given on
// the command line. Flags win.
func searchOptions(cmd *cobra.Command, config *Config) retrieval.Options {
	flags := cmd.Flags()
	opts := retrieval.Options{}

	opts.TopK, _ = flags.GetInt("top-k")
	opts.FilterLocation, _ = flags.GetString("location")

	types, _ := flags.GetStringSlice("type")
	for _, raw := range types {
		// Unknown types are passed through and rejected by the engine.
		t, ok := opportunity.ParseType(raw)
		if !ok {
			t = opportunity.Type(raw)
		}
		opts.FilterTypes = append(opts.FilterTypes, t)
	}

	profile := opportunity.Profile{}
	if config.Profile != nil {
		profile = *config.Profile
	}
	if flags.Changed("skills") {
		v, _ := flags.GetString("skills")
		profile.Skills = utils.SplitList(v)
	}
	if flags.Changed("interests") {
		v, _ := flags.GetString("interests")
		profile.Interests = utils.SplitList(v)
	}
	if flags.Changed("profile-location") {
		profile.Location, _ = flags.GetString("profile-location")
	}
	if flags.Changed("preferred-types") {
		v, _ := flags.GetString("preferred-types")
		profile.PreferredTypes = utils.SplitList(v)
	}
	if !profile.IsZero() {
		opts.Profile = &profile
	}
	return opts
}

func askQuery() (string, error) {
	p := promptui.Prompt{Label: "Search"}
	query, err := p.Run()
	if err != nil {
		return "", errExit
	}
	return query, nil
}

func printResult(w io.Writer, result *retrieval.Result, output string) error {
	if output == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(w, "source: %s  offline: %t  ai: %t  results: %d\n\n",
		result.DataSource, result.IsOffline, result.UsedAI, len(result.Opportunities))
	if len(result.Opportunities) == 0 {
		fmt.Fprintln(w, "No matching opportunities.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSCORE\tAI\tTYPE\tTITLE\tORGANIZATION\tLOCATION")
	for i, r := range result.Opportunities {
		ai := "-"
		if result.UsedAI && r.FinalScore != 0 {
			ai = fmt.Sprintf("%.0f", r.RelevanceScore)
		}
		fmt.Fprintf(tw, "%d\t%.3f\t%s\t%s\t%s\t%s\t%s\n",
			i+1, r.Score, ai, r.Type,
			utils.TruncateForLog(r.Title, 48),
			utils.TruncateForLog(r.Organization, 32),
			r.Location,
		)
	}
	return tw.Flush()
}

// browse shows the result menu until the user starts a new search or exits.
func browse(w io.Writer, logger *zap.Logger, result *retrieval.Result) (string, error) {
	items := make([]opportunity.Opportunity, 0, len(result.Opportunities))
	for _, r := range result.Opportunities {
		items = append(items, r.Opportunity)
	}
	found := &opportunity.Opportunities{Items: items}

	for {
		_, action, err := actionPrompt.Run()
		if err != nil {
			return "", errExit
		}

		switch action {
		case PromptNewSearch:
			return askQuery()
		case PromptExit:
			logger.Debug("exiting", zap.String("reason", "got exit from prompt"))
			return "", errExit
		case PromptDetails:
			if err := showDetails(w, found, result); err != nil {
				return "", err
			}
		case PromptReportByType:
			pretty, _ := json.MarshalIndent(found.ReportByType(), "", "  ")
			logger.Info(string(pretty), zap.Int("opportunities count", found.Len()))
		case PromptResultsToFile:
			filename, err := found.DumpToTmpFile()
			if err != nil {
				return "", fmt.Errorf("dump results to file: %w", err)
			}
			logger.Info("dumping result to file", zap.String("filename", filename))
		default:
			return "", fmt.Errorf("invalid action: %s", action)
		}
	}
}

func showDetails(w io.Writer, found *opportunity.Opportunities, result *retrieval.Result) error {
	labels := make([]string, 0, found.Len()+1)
	for _, o := range found.Items {
		labels = append(labels, fmt.Sprintf("%s %s / %s / %s", o.ID, o.Title, o.Organization, o.Location))
	}

	selectPrompt := promptui.Select{
		Label: "Choose an opportunity and press ENTER",
		Items: append(labels, PromptBack),
	}
	_, selected, err := selectPrompt.Run()
	if err != nil || selected == PromptBack {
		return nil
	}

	id := strings.Split(selected, " ")[0]
	o := found.FindByID(id)
	if o == nil {
		return fmt.Errorf("there is no such opportunity id %s", id)
	}

	fmt.Fprintf(w, "\n%s\n%s | %s | %s\n", o.Title, o.Organization, o.Type, o.Location)
	if o.DatePosted != "" {
		fmt.Fprintf(w, "Posted: %s\n", o.DatePosted)
	}
	if o.URL != "" {
		fmt.Fprintf(w, "Apply: %s\n", o.URL)
	}
	fmt.Fprintf(w, "\n%s\n", o.Description)
	for _, r := range result.Opportunities {
		if r.ID == id && r.Reasoning != "" {
			fmt.Fprintf(w, "\nWhy it fits (%.0f/100): %s\n", r.RelevanceScore, r.Reasoning)
		}
	}
	fmt.Fprintln(w)
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/hassupdate/internal/config"
	"github.com/muurk/hassupdate/internal/discovery"
	"github.com/muurk/hassupdate/internal/hass"
	"github.com/muurk/hassupdate/internal/i18n"
	"github.com/muurk/hassupdate/internal/logging"
	"github.com/muurk/hassupdate/internal/tui"
	"github.com/muurk/hassupdate/internal/ui"
	"github.com/muurk/hassupdate/internal/update"
	"github.com/muurk/hassupdate/internal/urls"
)

// Environment variables read as flag defaults
const (
	envURL   = "HASS_URL"
	envToken = "HASS_TOKEN"
)

// Translation categories merged over the built-in strings
var translationCategories = []string{"state", "entity_component"}

// Command flags
var (
	hassURL       string
	hassToken     string
	language      string
	timeout       time.Duration
	logLevel      string
	outputFormat  string
	noNotes       bool
	markdownStyle string
)

func init() {
	// Connection flags for every command (persistent on root)
	rootCmd.PersistentFlags().StringVar(&hassURL, "url", os.Getenv(envURL), "Home Assistant URL (env HASS_URL)")
	rootCmd.PersistentFlags().StringVar(&hassToken, "token", os.Getenv(envToken), "Long-lived access token (env HASS_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&language, "language", "", "Translation language (default from config, then \"en\")")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Request timeout, or scan duration for 'scan' (e.g. 30s)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (env HASSUPDATE_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&markdownStyle, "notes-style", ui.MarkdownStyleAuto, "Release notes style: dark, light, notty (default auto)")

	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(scanCmd)
}

// session is an authenticated connection plus the strings to render with.
type session struct {
	client   *hass.Client
	loc      *i18n.Localizer
	url      string
	timeout  time.Duration
	registry *config.Registry
}

func (s *session) Close() {
	if err := s.client.Close(); err != nil {
		logging.Debug("Closing connection failed", zap.Error(err))
	}
}

// loadRegistry returns the user registry, or a fresh one when it cannot be read.
func loadRegistry() *config.Registry {
	reg, err := config.LoadRegistry()
	if err != nil {
		logging.Warn("Ignoring unreadable config file", zap.Error(err))
		return config.NewRegistry()
	}
	return reg
}

// requestTimeout resolves --timeout against the configured preference.
func requestTimeout(reg *config.Registry) time.Duration {
	if timeout > 0 {
		return timeout
	}
	if reg.Preferences != nil && reg.Preferences.RequestTimeout > 0 {
		return time.Duration(reg.Preferences.RequestTimeout) * time.Second
	}
	return hass.DefaultTimeout
}

// connect dials the instance named by --url, HASS_URL or the config file.
func connect(ctx context.Context) (*session, error) {
	reg := loadRegistry()

	url := hassURL
	if url == "" {
		url = reg.DefaultURL()
	}
	if url == "" {
		return nil, fmt.Errorf("no Home Assistant URL: use --url, set %s, or run 'hass-update scan'", envURL)
	}
	if hassToken == "" {
		return nil, fmt.Errorf("no access token: use --token or set %s", envToken)
	}

	reqTimeout := requestTimeout(reg)
	client, err := hass.Dial(ctx, hass.Options{
		URL:     url,
		Token:   hassToken,
		Timeout: reqTimeout,
	})
	if err != nil {
		return nil, err
	}

	s := &session{
		client:   client,
		loc:      i18n.MustNew(),
		url:      url,
		timeout:  reqTimeout,
		registry: reg,
	}
	s.loadTranslations(ctx)
	s.remember()
	return s, nil
}

// loadTranslations overlays the instance's translations on the built-in
// strings. Failures keep the built-in strings.
func (s *session) loadTranslations(ctx context.Context) {
	lang := language
	if lang == "" && s.registry.Preferences != nil {
		lang = s.registry.Preferences.Language
	}
	if lang == "" {
		lang = i18n.DefaultLanguage
	}
	s.loc.SetLanguage(lang)

	for _, category := range translationCategories {
		resources, err := s.client.Translations(ctx, lang, category)
		if err != nil {
			logging.Warn("Translations unavailable",
				zap.String("language", lang),
				zap.String("category", category),
				zap.Error(err),
			)
			continue
		}
		s.loc.Merge(resources)
	}
}

// remember records the instance in the config file.
func (s *session) remember() {
	key := s.url
	for _, k := range s.registry.InstanceKeys() {
		if inst := s.registry.GetInstance(k); inst != nil && inst.URL == s.url {
			key = k
			break
		}
	}

	inst := s.registry.RememberInstance(key, "", s.url)
	inst.Version = s.client.HAVersion()

	if err := s.registry.Save(); err != nil {
		logging.Warn("Could not save config", zap.Error(err))
	}
}

// signalContext is cancelled on interrupt.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}

// tuiCmd launches the interactive interface
var tuiCmd = &cobra.Command{
	Use:   "tui [entity_id]",
	Short: "Launch the interactive interface",
	Long: `Launch the interactive interface.

The interface lists every update entity and opens a detail panel with
version information, release notes and install, skip and clear-skipped
actions. Entity state is kept current while the interface is open.`,
	Example: `  # Launch the interface (tui is the default)
  hass-update
  hass-update tui

  # Open one entity directly
  hass-update tui update.home_assistant_core_update`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := tui.RunOptions{
		Options: tui.Options{
			Instance:      s.url,
			MarkdownStyle: markdownStyle,
		},
		Timeout: s.timeout,
	}
	if len(args) == 1 {
		opts.EntityID = args[0]
	}

	return tui.Run(ctx, s.client, s.loc, opts)
}

// listCmd lists update entities
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List update entities",
	Long: `List every update entity with installed and latest versions and status.`,
	Example: `  # Table output
  hass-update list

  # JSON output for scripting
  hass-update list --format json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format (table, json)")
}

func runList(cmd *cobra.Command, args []string) error {
	if outputFormat != "table" && outputFormat != "json" {
		return fmt.Errorf("unknown format %q (use table or json)", outputFormat)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	entities, err := s.client.UpdateEntities(ctx)
	if err != nil {
		return fmt.Errorf("failed to list update entities: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		data, err := json.MarshalIndent(entities, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(entities) == 0 {
		fmt.Fprintln(out, "No update entities found.")
		fmt.Fprintln(out, "Update entities are provided by integrations; see "+urls.UpdateIntegration)
		return nil
	}

	fmt.Fprintln(out, ui.RenderEntityTable(entities))
	fmt.Fprintf(out, "\n%d update entities, %d with an update available\n", len(entities), countAvailable(entities))
	return nil
}

func countAvailable(entities []*update.Entity) int {
	n := 0
	for _, e := range entities {
		if e.State == update.StateOn {
			n++
		}
	}
	return n
}

// showCmd renders the update panel once
var showCmd = &cobra.Command{
	Use:   "show <entity_id>",
	Short: "Show an update entity",
	Long: `Show the update panel for one entity: progress, versions, release
announcement, release notes and the actions that are currently available.`,
	Example: `  hass-update show update.home_assistant_core_update

  # Skip fetching release notes
  hass-update show update.home_assistant_core_update --no-notes`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&noNotes, "no-notes", false, "Do not fetch or show release notes")
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	entity, err := s.client.Entity(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", args[0], err)
	}

	host := hass.NewHost(s.client, s.loc, hass.HostOptions{Timeout: s.timeout, Synchronous: true})

	var fetcher update.ReleaseNotesFetcher
	if !noNotes {
		fetcher = host
	}

	panel := update.NewPanel(host, fetcher, nil)
	panel.SetEntity(entity)
	if panel.Mount() {
		panel.LoadReleaseNotes(ctx)
	}
	defer panel.Unmount()

	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.PrintHeader(entity.Name(), "hass-update show "+entity.EntityID,
		ui.Param{Key: "Instance", Value: s.url},
		ui.Param{Key: "Entity", Value: entity.EntityID},
		ui.Param{Key: "State", Value: ui.StatusLabel(entity)},
	)

	view := panel.Render()
	if view.Empty {
		printer.PrintWarning(entity.Name()+" is "+entity.State,
			ui.Param{Key: "Entity", Value: entity.EntityID},
		)
		return nil
	}

	printer.PrintPanel(ui.RenderPanel(view, ui.PanelOptions{
		Width:         printer.Width(),
		HideNotes:     noNotes,
		MarkdownStyle: markdownStyle,
	}))
	return nil
}

// scanCmd discovers Home Assistant instances on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Home Assistant instances on the network",
	Long: `Scan for Home Assistant instances using mDNS/DNS-SD discovery.

Discovered instances are remembered in the config file, so later commands
can connect without --url.`,
	Example: `  # Scan for the configured duration (10 seconds by default)
  hass-update scan

  # Quick 3-second scan
  hass-update scan --timeout 3s`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	reg := loadRegistry()

	scanTimeout := timeout
	if scanTimeout <= 0 {
		scanTimeout = config.DefaultDiscoverTimeout * time.Second
		if reg.Preferences != nil && reg.Preferences.DiscoverTimeout > 0 {
			scanTimeout = time.Duration(reg.Preferences.DiscoverTimeout) * time.Second
		}
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.PrintHeader("Scan", "hass-update scan",
		ui.Param{Key: "Service", Value: discovery.ServiceType},
		ui.Param{Key: "Timeout", Value: scanTimeout.String()},
	)
	printer.PrintPleaseWait("Scanning")

	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout

	instances, err := scanner.ScanForInstancesWithContext(ctx)
	if err != nil {
		printer.PrintError("Scan failed", err, nil)
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(instances) == 0 {
		printer.PrintWarning("No Home Assistant instances found")
		printer.Println("Troubleshooting:")
		printer.Println("  • Make sure this machine is on the same network as Home Assistant")
		printer.Println("  • Multicast DNS may be blocked by your router or firewall")
		printer.Println("  • Try increasing --timeout for slower networks")
		printer.Println("  • Use --url to connect to a known address")
		printer.Println("  • See " + urls.Zeroconf)
		return nil
	}

	keyStyle := lipgloss.NewStyle().Foreground(ui.MutedColor)
	printer.Println(fmt.Sprintf("Found %d instance(s):", len(instances)))
	printer.Newline()

	for i, inst := range instances {
		printer.Println(fmt.Sprintf("%d. %s", i+1, ui.PanelTitleStyle.Render(inst.Name)))
		printer.Println(keyStyle.Render("   URL:      ") + inst.URL())
		if inst.Version != "" {
			printer.Println(keyStyle.Render("   Version:  ") + inst.Version)
		}
		printer.Println(keyStyle.Render("   Address:  ") + fmt.Sprintf("%s:%d", inst.IP, inst.Port))
		if inst.UUID != "" {
			printer.Println(keyStyle.Render("   UUID:     ") + inst.UUID)
		}
		printer.Newline()

		saved := reg.RememberInstance(inst.Key(), inst.Name, inst.URL())
		saved.Version = inst.Version
	}

	if len(instances) == 1 && reg.Preferences != nil && reg.Preferences.DefaultInstance == "" {
		reg.Preferences.DefaultInstance = instances[0].Key()
	}
	if err := reg.Save(); err != nil {
		logging.Warn("Could not save discovered instances", zap.Error(err))
	}

	printer.Println(strings.Join([]string{
		"Use 'hass-update --url <url> list' to list updates",
		"Set " + envToken + " to a long-lived access token first",
	}, "\n"))
	return nil
}

// tskit: Qt Linguist .ts catalog editor with machine translation support.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/minios-linux/tskit/config"
	"github.com/minios-linux/tskit/httpapi"
	"github.com/minios-linux/tskit/i18n"
	"github.com/minios-linux/tskit/langdetect"
	"github.com/minios-linux/tskit/langmeta"
	"github.com/minios-linux/tskit/logging"
	"github.com/minios-linux/tskit/provider"
	"github.com/minios-linux/tskit/session"
	"github.com/minios-linux/tskit/settings"
	"github.com/minios-linux/tskit/translate"
	"github.com/minios-linux/tskit/tsfile"
	"github.com/minios-linux/tskit/watch"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+i18n.T(format)+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+i18n.T(format)+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+i18n.T(format)+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+i18n.T(format)+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flags and process state
// ---------------------------------------------------------------------------

type globalFlags struct {
	root      string
	provider  string
	apiKey    string
	proxy     string
	timeout   time.Duration
	logLevel  string
	logFormat string
}

var flags globalFlags

// app is built once per invocation by the root command's pre-run hook.
type app struct {
	env     *config.Env
	project *config.Project
	log     zerolog.Logger
}

var state app

func setup(cmd *cobra.Command) error {
	i18n.Init("")

	if _, err := config.LoadDotEnv(filepath.Join(flags.root, ".env")); err != nil {
		return err
	}
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		env.LogLevel = flags.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		env.LogFormat = flags.logFormat
	}
	log, err := logging.New(env.LogFormat, env.LogLevel)
	if err != nil {
		return err
	}
	project, err := config.LoadProject(flags.root)
	if err != nil {
		return err
	}
	if project != nil {
		log.Debug().Str("path", project.Path).Msg("project file loaded")
	}

	state = app{env: env, project: project, log: log}
	return nil
}

// newClient builds the translation client with the process-level provider,
// credential and network settings applied. Flags win over the project file,
// which wins over the environment.
func newClient() (*translate.Client, error) {
	proxy := state.env.Proxy
	timeout := state.env.Timeout
	providerID := ""
	if p := state.project; p != nil {
		if p.Proxy != "" {
			proxy = p.Proxy
		}
		if p.Timeout > 0 {
			timeout = p.Timeout
		}
		providerID = p.Provider
	}
	if flags.proxy != "" {
		proxy = flags.proxy
	}
	if flags.timeout > 0 {
		timeout = flags.timeout
	}
	if flags.provider != "" {
		providerID = flags.provider
	}

	client, err := translate.New(translate.Options{
		Proxy:   proxy,
		Timeout: timeout,
		Logger:  &state.log,
	})
	if err != nil {
		return nil, err
	}
	if err := client.SetProviderOverride(providerID); err != nil {
		client.Close()
		return nil, err
	}
	active := client.ActiveProvider()
	if flags.apiKey != "" {
		client.SetCredentialOverride(active, flags.apiKey)
	}
	if p := state.project; p != nil {
		client.SetLanguageOverride(active, p.SourceLang, p.TargetLang)
	}
	return client, nil
}

// catalogPaths returns the catalogs named on the command line, else the
// project's catalogs, else every .ts file under the root.
func catalogPaths(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if state.project != nil {
		return state.project.CatalogPaths()
	}
	return config.DiscoverCatalogs(flags.root)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tskit",
		Short: "Qt Linguist .ts catalog editor with machine translation",
		Long: `tskit: Qt Linguist translation catalog (.ts) editor with machine translation.

Reads and writes .ts catalogs, reports per-context progress, and fills
untranslated messages through a translation provider.

Commands:
  status          Show provider settings and catalog statistics
  list            List messages of a catalog
  set             Change the translation or state of a message
  translate       Translate untranslated messages of catalogs
  translate-text  Translate a single text
  providers       List translation providers
  use             Select the translation provider
  lang            Show or set the language pair of the provider
  auth            Manage provider credentials
  watch           Translate a catalog every time it changes
  serve           Serve a catalog over a JSON API

Providers:
  google   Google Translate   API key
  baidu    Baidu Translate    APPID:SECRET
  deepl    DeepL              auth key
  youdao   Youdao Translate   APPKEY:SECRET`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.root, "root", ".", "Project root directory")
	pf.StringVar(&flags.provider, "provider", "", "Translation provider for this run: google, baidu, deepl, youdao")
	pf.StringVar(&flags.apiKey, "api-key", "", "Provider credential for this run (or the provider's environment variable)")
	pf.StringVar(&flags.proxy, "proxy", "", "HTTP/HTTPS proxy URL (or TSKIT_PROXY)")
	pf.DurationVar(&flags.timeout, "timeout", 0, "Request timeout (or TSKIT_TIMEOUT)")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn, error (or TSKIT_LOG_LEVEL)")
	pf.StringVar(&flags.logFormat, "log-format", "console", "Log format: console, json (or TSKIT_LOG_FORMAT)")

	_ = root.RegisterFlagCompletionFunc("provider", completeProviders)

	root.AddCommand(
		newStatusCmd(),
		newListCmd(),
		newSetCmd(),
		newTranslateCmd(),
		newTranslateTextCmd(),
		newProvidersCmd(),
		newUseCmd(),
		newLangCmd(),
		newAuthCmd(),
		newWatchCmd(),
		newServeCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

func completeProviders(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	reg := provider.DefaultRegistry()
	out := make([]string, 0, len(reg.IDs()))
	for _, id := range reg.IDs() {
		out = append(out, fmt.Sprintf("%s\t%s", id, reg.DisplayName(id)))
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tskit version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// status (read-only: provider settings + catalog statistics)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var contexts bool

	cmd := &cobra.Command{
		Use:   "status [FILE.ts...]",
		Short: "Show provider settings and catalog statistics",
		Long: `Show the active provider, its language pair and credential source,
and translation statistics of each catalog. Catalogs default to the project
file's list, or every .ts file under --root. Does not modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			showProvider(client)
			paths, err := catalogPaths(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				logInfo("No .ts catalogs found under %s", flags.root)
				return nil
			}
			showCatalogStats(paths, contexts)
			return nil
		},
	}
	cmd.Flags().BoolVar(&contexts, "contexts", false, "Show per-context progress")
	return cmd
}

func showProvider(client *translate.Client) {
	active := client.ActiveProvider()
	cfg := client.Config(active)

	fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Provider"), colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  %-12s %s (%s)\n", i18n.T("Name:"), client.ProviderDisplayName(active), active)
	fmt.Fprintf(os.Stderr, "  %-12s %s -> %s\n", i18n.T("Languages:"), langmeta.Label(cfg.SourceLang), langmeta.Label(cfg.TargetLang))
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", i18n.T("Credential:"), credentialStatus(active, flags.apiKey))
	if state.project != nil {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", i18n.T("Project:"), state.project.Path)
	}
	fmt.Fprintln(os.Stderr)
}

// credentialStatus describes where the credential of a provider comes from.
func credentialStatus(providerID, flagValue string) string {
	key, source := settings.ResolveCredential(providerID, flagValue)
	switch source {
	case settings.SourceFlag:
		return fmt.Sprintf("%s%s%s (--api-key)", colorGreen, settings.MaskKey(key), colorReset)
	case settings.SourceEnv:
		return fmt.Sprintf("%s%s%s ($%s)", colorGreen, settings.MaskKey(key), colorReset, settings.EnvVarForProvider(providerID))
	case settings.SourceStore:
		return fmt.Sprintf("%s%s%s (%s)", colorGreen, settings.MaskKey(key), colorReset, settings.FilePath())
	}
	return colorRed + i18n.T("not configured") + colorReset
}

func showCatalogStats(paths []string, contexts bool) {
	fmt.Fprintf(os.Stderr, "%s%s%s\n", colorBlue, i18n.T("Translation Statistics"), colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 78))
	fmt.Fprintf(os.Stderr, "%-28s %-7s %-7s %-7s %-7s %-7s %s\n",
		i18n.T("File"), i18n.T("Lang"), i18n.T("Source"), i18n.T("Total"), i18n.T("Done"), i18n.T("Unfin."), i18n.T("Progress"))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 78))

	var totals tsfile.Stats
	for _, path := range paths {
		cat, err := tsfile.ParseFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%-28s %s%v%s\n", displayPath(path), colorRed, err, colorReset)
			continue
		}
		st := cat.Statistics()
		totals.Total += st.Total
		totals.Translated += st.Translated
		totals.Unfinished += st.Unfinished
		totals.Vanished += st.Vanished
		totals.Obsolete += st.Obsolete

		source := langdetect.SourceLanguage(cat)
		if source == "" {
			source = "?"
		} else if cat.SourceLanguage() == "" {
			source += "*"
		}
		fmt.Fprintf(os.Stderr, "%-28s %-7s %-7s %-7d %-7d %-7d %s\n",
			displayPath(path), orDash(cat.Language()), source,
			st.Total, st.Translated, st.Unfinished, progressBar(percent(st.Translated, st.Total), 20))

		if contexts {
			for _, cs := range cat.Contexts() {
				fmt.Fprintf(os.Stderr, "  %-26s %-15s %-7d %-7d %-7s %s\n",
					cs.Name, "", cs.Total, cs.Finished, "", progressBar(percent(cs.Finished, cs.Total), 20))
			}
		}
	}

	fmt.Fprintln(os.Stderr, strings.Repeat("─", 78))
	fmt.Fprintln(os.Stderr, i18n.Tf("Total messages: %d (translated %d, unfinished %d, vanished %d, obsolete %d)",
		totals.Total, totals.Translated, totals.Unfinished, totals.Vanished, totals.Obsolete))
	fmt.Fprintln(os.Stderr, i18n.T("* source language detected from message texts"))
	fmt.Fprintln(os.Stderr)
}

func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return part * 100 / total
}

// progressBar renders a colored bar followed by the percentage.
func progressBar(pct, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	color := colorRed
	switch {
	case pct >= 100:
		color = colorGreen
	case pct >= 50:
		color = colorYellow
	}
	return color + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + colorReset + fmt.Sprintf(" %3d%%", pct)
}

func displayPath(path string) string {
	if rel, err := filepath.Rel(flags.root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// ---------------------------------------------------------------------------
// list / set (catalog query and update)
// ---------------------------------------------------------------------------

func newListCmd() *cobra.Command {
	var (
		filter      string
		search      string
		contextName string
	)

	cmd := &cobra.Command{
		Use:   "list FILE.ts",
		Short: "List messages of a catalog",
		Long: `List the messages of a catalog, one per line:

  INDEX  STATE  CONTEXT  SOURCE => TRANSLATION

Filters:
  all           every message (default)
  untranslated  unfinished or empty translations
  review        unfinished messages that already have a translation`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := tsfile.ParseFile(args[0])
			if err != nil {
				return err
			}
			indices, err := selectEntries(cat, filter, search, contextName)
			if err != nil {
				return err
			}
			writeEntries(cmd.OutOrStdout(), cat, indices)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "all", "Message filter: all, untranslated, review")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Case-insensitive text to find in sources or translations")
	cmd.Flags().StringVar(&contextName, "context", "", "Only messages of this context")
	_ = cmd.RegisterFlagCompletionFunc("filter", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"all", "untranslated", "review"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func selectEntries(cat *tsfile.Catalog, filter, search, contextName string) ([]int, error) {
	var indices []int
	switch strings.ToLower(strings.TrimSpace(filter)) {
	case "", "all":
		indices = make([]int, cat.Len())
		for i := range indices {
			indices[i] = i
		}
	case "untranslated":
		indices = cat.Untranslated()
	case "review":
		indices = cat.NeedsReview()
	default:
		return nil, fmt.Errorf("unknown filter %q (use all, untranslated or review)", filter)
	}

	if search = strings.TrimSpace(search); search != "" {
		found := make(map[int]bool)
		for _, i := range cat.Search(search, true, true) {
			found[i] = true
		}
		kept := indices[:0]
		for _, i := range indices {
			if found[i] {
				kept = append(kept, i)
			}
		}
		indices = kept
	}

	if contextName != "" {
		kept := indices[:0]
		for _, i := range indices {
			if cat.EntryAt(i).Context == contextName {
				kept = append(kept, i)
			}
		}
		indices = kept
	}
	return indices, nil
}

func writeEntries(w io.Writer, cat *tsfile.Catalog, indices []int) {
	for _, i := range indices {
		e := cat.EntryAt(i)
		fmt.Fprintf(w, "%d\t%s\t%s\t%s => %s\n", i, e.State, e.Context, oneLine(e.Source), oneLine(e.Translation))
	}
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", `\n`)
}

func newSetCmd() *cobra.Command {
	var (
		contextName string
		source      string
		translation string
		stateName   string
		index       int
	)

	cmd := &cobra.Command{
		Use:   "set FILE.ts",
		Short: "Change the translation or state of a message",
		Long: `Change the translation and/or state of one message and save the catalog.

The message is selected by --index, or by --context and --source (the
first match wins).

Examples:
  tskit set app_de.ts --context MainWindow --source Open --translation Öffnen
  tskit set app_de.ts --index 4 --state unfinished`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hasTranslation := cmd.Flags().Changed("translation")
			hasState := cmd.Flags().Changed("state")
			if !hasTranslation && !hasState {
				return errors.New("nothing to change: use --translation and/or --state")
			}
			var st tsfile.State
			if hasState {
				var err error
				if st, err = parseState(stateName); err != nil {
					return err
				}
			}

			sess := session.New(nil, session.Options{Logger: &state.log})
			if err := sess.Load(args[0]); err != nil {
				return err
			}
			cat := sess.Catalog()

			if cmd.Flags().Changed("index") {
				e := cat.EntryAt(index)
				if e.IsZero() {
					return fmt.Errorf("no message at index %d (catalog has %d)", index, cat.Len())
				}
				if hasTranslation {
					cat.UpdateTranslationAt(index, translation)
				}
				if hasState {
					cat.UpdateStateAt(index, st)
				}
				contextName, source = e.Context, e.Source
			} else {
				if source == "" {
					return errors.New("--source or --index is required")
				}
				if cat.Find(contextName, source).IsZero() {
					return fmt.Errorf("message %q not found in context %q", source, contextName)
				}
				if hasTranslation {
					cat.UpdateTranslation(contextName, source, translation)
				}
				if hasState {
					cat.UpdateState(contextName, source, st)
				}
			}

			if !sess.Dirty() {
				logInfo("Nothing changed")
				return nil
			}
			if err := sess.Save(); err != nil {
				return err
			}
			logSuccess("Updated %q in %s", source, displayPath(sess.Path()))
			return nil
		},
	}

	cmd.Flags().StringVar(&contextName, "context", "", "Context name of the message")
	cmd.Flags().StringVar(&source, "source", "", "Source text of the message")
	cmd.Flags().IntVar(&index, "index", 0, "Index of the message (see 'tskit list')")
	cmd.Flags().StringVar(&translation, "translation", "", "New translation text")
	cmd.Flags().StringVar(&stateName, "state", "", "New state: finished, unfinished, vanished, obsolete")
	return cmd
}

func parseState(name string) (tsfile.State, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "finished", "unfinished", "vanished", "obsolete":
		return tsfile.ParseState(name), nil
	}
	return tsfile.Finished, fmt.Errorf("unknown state %q (use finished, unfinished, vanished or obsolete)", name)
}

// ---------------------------------------------------------------------------
// translate (batch over catalogs)
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		output string
		dryRun bool
		noSave bool
	)

	cmd := &cobra.Command{
		Use:   "translate [FILE.ts...]",
		Short: "Translate untranslated messages of catalogs",
		Long: `Send the untranslated messages of each catalog to the active provider
and write the results back as finished translations.

The target language is the catalog's language attribute unless the project
file sets target_lang. A source language of "auto" is resolved from the
catalog's sourcelanguage attribute or detected from its texts.

Press Ctrl+C to stop: translations received so far are kept.

Examples:
  tskit translate app_de.ts
  tskit translate --provider deepl --api-key KEY app_de.ts app_fr.ts
  tskit translate app_de.ts --output app_de.new.ts
  tskit translate --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := catalogPaths(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no .ts catalogs found under %s", flags.root)
			}
			if output != "" && len(paths) != 1 {
				return errors.New("--output needs exactly one catalog")
			}
			if dryRun {
				return runDryRun(paths)
			}

			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			save := !noSave
			if state.project != nil && !cmd.Flags().Changed("no-save") {
				save = state.project.SaveAfterBatch
			}

			ctx, stop := signalContext()
			defer stop()

			base := client.Config(client.ActiveProvider())
			var failed int
			for _, path := range paths {
				if ctx.Err() != nil {
					break
				}
				if err := translateCatalog(ctx, client, base, path, output, save); err != nil {
					logError("%s: %v", displayPath(path), err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d catalogs failed", failed, len(paths))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the result to this file instead of the input")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be translated without calling the provider")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not write results (with --output, the output is still written)")
	return cmd
}

func runDryRun(paths []string) error {
	for _, path := range paths {
		cat, err := tsfile.ParseFile(path)
		if err != nil {
			logError("%s: %v", displayPath(path), err)
			continue
		}
		n := len(cat.Untranslated())
		fmt.Fprintf(os.Stderr, "  %-28s %s\n", displayPath(path),
			fmt.Sprintf(i18n.N("%d message to translate", "%d messages to translate", n), n))
	}
	return nil
}

// catalogLanguages returns the language pair for cat: an "auto" source is
// resolved from the catalog, and the catalog's language is the target
// unless fixedTarget is set.
func catalogLanguages(cat *tsfile.Catalog, base provider.Config, fixedTarget bool) (source, target string) {
	source = base.SourceLang
	if langmeta.Canonicalize(source) == langmeta.Auto {
		if detected := langdetect.SourceLanguage(cat); detected != "" {
			source = langmeta.Canonicalize(detected)
		}
	}
	target = base.TargetLang
	if !fixedTarget && cat.Language() != "" {
		target = langmeta.Canonicalize(cat.Language())
	}
	return source, target
}

func translateCatalog(ctx context.Context, client *translate.Client, base provider.Config, path, output string, save bool) error {
	saveInPlace := save && output == ""
	sess := session.New(client, session.Options{SaveAfterBatch: saveInPlace, Logger: &state.log})
	if err := sess.Load(path); err != nil {
		return err
	}

	active := client.ActiveProvider()
	fixedTarget := state.project != nil && state.project.TargetLang != ""
	source, target := catalogLanguages(sess.Catalog(), base, fixedTarget)
	client.SetLanguageOverride(active, source, target)

	logInfo("%s: %s -> %s via %s", displayPath(path), langmeta.Label(source),
		langmeta.Label(target), client.ProviderDisplayName(active))

	n, err := sess.TranslateUntranslated(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		logSuccess("%s: nothing to translate", displayPath(path))
		return nil
	}

	applied, canceled, err := pumpBatch(client.Events(), sess)
	if err != nil {
		return err
	}

	switch {
	case output != "":
		if err := sess.SaveAs(output); err != nil {
			return err
		}
	case canceled && saveInPlace && sess.Dirty():
		if err := sess.Save(); err != nil {
			return err
		}
	}

	if canceled {
		logWarning("%s: interrupted, %d of %d messages translated", displayPath(path), applied, n)
		return nil
	}
	if applied < n {
		logWarning("%s: %d of %d messages translated", displayPath(path), applied, n)
	} else {
		logSuccess("%s: %d messages translated", displayPath(path), applied)
	}
	if !saveInPlace && output == "" {
		logInfo("Results were not saved (--no-save)")
	}
	return nil
}

// pumpBatch applies batch events to sess until the batch ends, drawing
// progress on stderr.
func pumpBatch(events <-chan translate.Event, sess *session.Session) (applied int, canceled bool, err error) {
	for e := range events {
		n, applyErr := sess.Apply(e)
		applied += n
		switch e.Kind {
		case translate.EventProgress:
			fmt.Fprintf(os.Stderr, "\r  %s %d/%d", progressBar(percent(e.Current, e.Total), 30), e.Current, e.Total)
		case translate.EventError:
			fmt.Fprintln(os.Stderr)
			if e.Original != "" {
				logWarning("%q: %s", e.Original, e.Message)
			} else {
				logWarning("%s", e.Message)
			}
		case translate.EventCompleted:
			fmt.Fprintln(os.Stderr)
			return applied, false, applyErr
		case translate.EventCanceled:
			fmt.Fprintln(os.Stderr)
			return applied, true, nil
		}
		if applyErr != nil {
			return applied, false, applyErr
		}
	}
	return applied, true, nil
}

// ---------------------------------------------------------------------------
// translate-text
// ---------------------------------------------------------------------------

func newTranslateTextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "translate-text TEXT...",
		Short: "Translate a single text",
		Long: `Translate the given text (arguments joined by spaces, or standard input
when the only argument is "-") and print the result.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = strings.TrimRight(string(data), "\n")
			}

			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signalContext()
			defer stop()

			translated, err := client.Translate(ctx, text)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), translated)
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// providers / use / lang (provider configuration)
// ---------------------------------------------------------------------------

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List translation providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			reg := provider.DefaultRegistry()
			active := client.ActiveProvider()
			out := cmd.OutOrStdout()
			for _, id := range client.SupportedProviders() {
				marker := " "
				if id == active {
					marker = "*"
				}
				mode := "-"
				if a, err := reg.Adapter(id); err == nil {
					mode = a.BatchMode().String()
				}
				cfg := client.Config(id)
				configured := i18n.T("not configured")
				if cfg.Credential != "" {
					configured = i18n.T("configured")
				}
				fmt.Fprintf(out, "%s %-8s %-18s %-10s %-15s %s -> %s\n",
					marker, id, client.ProviderDisplayName(id), mode, configured, cfg.SourceLang, cfg.TargetLang)
			}
			return nil
		},
	}
}

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "use PROVIDER",
		Short:             "Select the translation provider",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeProviders,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.SetProvider(args[0]); err != nil {
				return err
			}
			id := provider.NormalizeID(args[0])
			logSuccess("Using %s", client.ProviderDisplayName(id))
			if client.Config(id).Credential == "" {
				logWarning("No credential configured. Run 'tskit auth login --provider %s'", id)
			}
			return nil
		},
	}
}

func newLangCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lang [SOURCE TARGET]",
		Short: "Show or set the language pair of the provider",
		Long: `Without arguments, show the language pair of the active provider (or
--provider) and the offered languages. With two arguments, store a new pair.
SOURCE may be "auto".

Examples:
  tskit lang
  tskit lang en de
  tskit --provider baidu lang auto zh-CN`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return errors.New("expected no arguments or SOURCE TARGET")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()
			active := client.ActiveProvider()

			if len(args) == 0 {
				cfg := client.Config(active)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s: %s -> %s\n\n", client.ProviderDisplayName(active), cfg.SourceLang, cfg.TargetLang)
				fmt.Fprintf(out, "  %-7s %s\n", langmeta.Auto, langmeta.Label(langmeta.Auto))
				for _, tag := range langmeta.Choices {
					fmt.Fprintf(out, "  %-7s %s\n", tag, langmeta.Label(tag))
				}
				return nil
			}

			source, target, err := validateLanguagePair(args[0], args[1])
			if err != nil {
				return err
			}
			if err := client.SetLanguages(active, source, target); err != nil {
				return err
			}
			logSuccess("%s: %s -> %s", client.ProviderDisplayName(active), langmeta.Label(source), langmeta.Label(target))
			return nil
		},
	}
}

func validateLanguagePair(source, target string) (string, string, error) {
	source = langmeta.Canonicalize(source)
	target = langmeta.Canonicalize(target)
	if source != langmeta.Auto && !langmeta.Known(source) && !langmeta.Known(langmeta.Base(source)) {
		return "", "", fmt.Errorf("unknown source language %q", source)
	}
	if target == langmeta.Auto {
		return "", "", errors.New("target language cannot be auto")
	}
	if !langmeta.Known(target) && !langmeta.Known(langmeta.Base(target)) {
		return "", "", fmt.Errorf("unknown target language %q", target)
	}
	return source, target, nil
}

// ---------------------------------------------------------------------------
// auth (credential management)
// ---------------------------------------------------------------------------

// providerHelp describes where to obtain a credential and its format.
var providerHelp = map[string]struct {
	url    string
	format string
}{
	provider.Google: {"https://console.cloud.google.com/apis/credentials", "API key"},
	provider.Baidu:  {"https://fanyi-api.baidu.com/manage/developer", "APPID:SECRET"},
	provider.DeepL:  {"https://www.deepl.com/your-account/keys", "auth key"},
	provider.Youdao: {"https://ai.youdao.com/console/", "APPKEY:SECRET"},
}

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider credentials",
		Long: `Manage the credentials stored for translation providers.

Credentials are looked up in this order:
  1. --api-key flag
  2. the provider's environment variable
       google  GOOGLE_TRANSLATE_API_KEY
       baidu   BAIDU_TRANSLATE_KEY   (APPID:SECRET)
       deepl   DEEPL_AUTH_KEY
       youdao  YOUDAO_TRANSLATE_KEY  (APPKEY:SECRET)
  3. the settings file ($XDG_DATA_HOME/tskit/settings.json)

Examples:
  tskit auth login                      Interactive provider selection
  tskit auth login --provider deepl     Store a DeepL auth key
  tskit auth logout --provider baidu    Remove the Baidu credential
  tskit auth logout                     Remove all credentials
  tskit auth list                       Show credential status`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Store a provider credential",
		Long: `Store the credential of a provider in the settings file.

If --provider is not specified, you will be prompted to choose.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			in := bufio.NewScanner(cmd.InOrStdin())
			id := provider.NormalizeID(flags.provider)
			if id == "" {
				if id, err = promptProvider(in, client); err != nil {
					return err
				}
			}
			return authLogin(in, client, id)
		},
	}
}

func promptProvider(in *bufio.Scanner, client *translate.Client) (string, error) {
	ids := client.SupportedProviders()
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "%s%s%s\n\n", colorBlue, i18n.T("Select provider to authenticate:"), colorReset)
	for i, id := range ids {
		fmt.Fprintf(os.Stderr, "  %d. %s%-7s%s %s (%s)\n",
			i+1, colorYellow, id, colorReset, client.ProviderDisplayName(id), providerHelp[id].format)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprint(os.Stderr, i18n.T("Enter choice (number or name): "))

	if !in.Scan() {
		return "", errors.New("no input received")
	}
	return matchChoice(strings.TrimSpace(in.Text()), ids)
}

// matchChoice resolves a 1-based menu number or a provider ID.
func matchChoice(choice string, ids []string) (string, error) {
	for i, id := range ids {
		if choice == fmt.Sprintf("%d", i+1) || provider.NormalizeID(choice) == id {
			return id, nil
		}
	}
	return "", fmt.Errorf("invalid choice %q, use: tskit auth login --provider PROVIDER", choice)
}

func authLogin(in *bufio.Scanner, client *translate.Client, id string) error {
	name := client.ProviderDisplayName(id)
	help := providerHelp[id]

	fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.Tf("%s credential setup", name), colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	if help.url != "" {
		fmt.Fprintf(os.Stderr, "  %s %s%s%s\n", i18n.T("Get your credential from:"), colorGreen, help.url, colorReset)
	}
	fmt.Fprintf(os.Stderr, "  %s %s\n\n", i18n.T("Format:"), help.format)

	existing := settings.GetCredential(id)
	if existing != "" {
		fmt.Fprintf(os.Stderr, "  %s %s%s%s\n", i18n.T("Current credential:"), colorYellow, settings.MaskKey(existing), colorReset)
		fmt.Fprint(os.Stderr, "  "+i18n.T("Enter a new one to replace it, or press Enter to keep: "))
	} else {
		fmt.Fprint(os.Stderr, "  "+i18n.T("Enter credential: "))
	}

	if !in.Scan() {
		return errors.New("no input received")
	}
	key := strings.TrimSpace(in.Text())
	if key == "" {
		if existing != "" {
			logInfo("Keeping existing credential")
			return nil
		}
		return errors.New("no credential provided")
	}
	if strings.Contains(help.format, ":") {
		if a, b, ok := strings.Cut(key, ":"); !ok || a == "" || b == "" {
			return fmt.Errorf("%s expects a credential of the form %s", name, help.format)
		}
	}

	if err := client.SetCredential(id, key); err != nil {
		return err
	}
	logSuccess("%s credential saved", name)
	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Long: `Remove the stored credential of --provider, or of every provider when
--provider is not specified. Environment variables are not touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := provider.DefaultRegistry()
			if flags.provider != "" {
				id := provider.NormalizeID(flags.provider)
				if _, err := reg.Adapter(id); err != nil {
					return err
				}
				if err := settings.RemoveCredential(id); err != nil {
					return fmt.Errorf("removing %s credential: %w", id, err)
				}
				logSuccess("%s credential removed", reg.DisplayName(id))
				return nil
			}

			var errs []error
			for _, id := range reg.IDs() {
				if err := settings.RemoveCredential(id); err != nil {
					errs = append(errs, fmt.Errorf("removing %s credential: %w", id, err))
				}
			}
			if err := errors.Join(errs...); err != nil {
				return err
			}
			logSuccess("All stored credentials removed")
			return nil
		},
	}
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored credentials and status",
		Run: func(cmd *cobra.Command, args []string) {
			reg := provider.DefaultRegistry()

			fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Credentials"), colorReset)
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			for _, id := range reg.IDs() {
				fmt.Fprintf(os.Stderr, "  %-8s %s\n", id, credentialStatus(id, ""))
			}

			fmt.Fprintf(os.Stderr, "\n  %s%s%s\n", colorYellow, i18n.T("Environment Variables"), colorReset)
			for _, id := range reg.IDs() {
				env := settings.EnvVarForProvider(id)
				if v := os.Getenv(env); v != "" {
					fmt.Fprintf(os.Stderr, "  %-26s %s%s%s\n", env, colorGreen, settings.MaskKey(v), colorReset)
				} else {
					fmt.Fprintf(os.Stderr, "  %-26s %s%s%s\n", env, colorRed, i18n.T("not set"), colorReset)
				}
			}
			fmt.Fprintln(os.Stderr)
		},
	}
}

// ---------------------------------------------------------------------------
// watch / serve (long-running)
// ---------------------------------------------------------------------------

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch FILE.ts",
		Short: "Translate a catalog every time it changes",
		Long: `Watch a catalog and translate its untranslated messages on start and
after every change, saving the results. Stop with Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			sess := session.New(client, session.Options{SaveAfterBatch: true, Logger: &state.log})
			w := watch.New(args[0], sess, client.Events(), watch.Options{
				Debounce: debounce,
				Logger:   &state.log,
				OnEvent: func(e translate.Event) {
					switch e.Kind {
					case translate.EventCompleted:
						logSuccess("%s: %d results", displayPath(args[0]), len(e.Results))
					case translate.EventError:
						logWarning("%s", e.Message)
					}
				},
			})

			ctx, stop := signalContext()
			defer stop()
			logInfo("Watching %s (Ctrl+C to stop)", displayPath(args[0]))
			return w.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Delay after the last change before translating")
	return cmd
}

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [FILE.ts]",
		Short: "Serve a catalog over a JSON API",
		Long: `Serve a catalog and the translation client over a JSON API (JSend
envelopes) under /api. The address defaults to TSKIT_HTTP_ADDR.

Endpoints:
  GET    /api/health
  GET    /api/catalog
  GET    /api/entries?filter=all|untranslated|review&q=&context=
  GET    /api/entries/:index
  PUT    /api/entries
  POST   /api/translate
  GET    /api/batch    POST /api/batch    DELETE /api/batch
  POST   /api/save
  GET    /api/providers`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			save := true
			if state.project != nil {
				save = state.project.SaveAfterBatch
			}
			sess := session.New(client, session.Options{SaveAfterBatch: save, Logger: &state.log})
			if len(args) == 1 {
				if err := sess.Load(args[0]); err != nil {
					return err
				}
			}

			go func() {
				for e := range client.Events() {
					if _, err := sess.Apply(e); err != nil {
						state.log.Error().Err(err).Str("path", sess.Path()).Msg("applying translation failed")
					}
				}
			}()

			if addr == "" {
				addr = state.env.HTTPAddr
			}
			srv := httpapi.NewServer(sess, client, state.log, httpapi.Options{Addr: addr})

			ctx, stop := signalContext()
			defer stop()
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default TSKIT_HTTP_ADDR)")
	return cmd
}

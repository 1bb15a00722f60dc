package main

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/minios-linux/tskit/provider"
	"github.com/minios-linux/tskit/settings"
	"github.com/minios-linux/tskit/translate"
	"github.com/minios-linux/tskit/tsfile"
)

const testCatalog = `<?xml version="1.0" encoding="utf-8"?>
<!DOCTYPE TS>
<TS version="2.1" language="de_DE" sourcelanguage="en">
  <context>
    <name>MainWindow</name>
    <message>
      <source>Open</source>
      <translation type="unfinished"></translation>
    </message>
    <message>
      <source>Save</source>
      <translation type="unfinished">Speichern</translation>
    </message>
    <message>
      <source>Quit</source>
      <translation>Beenden</translation>
    </message>
  </context>
  <context>
    <name>Dialog</name>
    <message>
      <source>Open</source>
      <translation type="unfinished"></translation>
    </message>
  </context>
</TS>
`

func writeCatalog(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "app_de.ts")
	if err := os.WriteFile(path, []byte(testCatalog), 0644); err != nil {
		t.Fatalf("os.WriteFile() error: %v", err)
	}
	return path
}

// runCLI executes the root command with an isolated settings directory and
// returns what it wrote to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("TSKIT_ENV_FILE", "")
	for _, id := range provider.DefaultRegistry().IDs() {
		t.Setenv(settings.EnvVarForProvider(id), "")
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name  string
		pct   int
		width int
		want  string
	}{
		{
			name:  "clamps below zero",
			pct:   -10,
			width: 4,
			want:  colorRed + "░░░░" + colorReset + "   0%",
		},
		{
			name:  "mid range uses yellow",
			pct:   50,
			width: 4,
			want:  colorYellow + "██░░" + colorReset + "  50%",
		},
		{
			name:  "clamps above hundred",
			pct:   120,
			width: 4,
			want:  colorGreen + "████" + colorReset + " 100%",
		},
	}

	for _, tc := range tests {
		if got := progressBar(tc.pct, tc.width); got != tc.want {
			t.Fatalf("%s: progressBar() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := percent(1, 3); got != 33 {
		t.Fatalf("percent(1, 3) = %d, want 33", got)
	}
	if got := percent(5, 0); got != 0 {
		t.Fatalf("percent(5, 0) = %d, want 0", got)
	}
}

func TestParseState(t *testing.T) {
	for name, want := range map[string]tsfile.State{
		"finished":    tsfile.Finished,
		" Unfinished": tsfile.Unfinished,
		"VANISHED":    tsfile.Vanished,
		"obsolete":    tsfile.Obsolete,
	} {
		got, err := parseState(name)
		if err != nil || got != want {
			t.Fatalf("parseState(%q) = %v, %v, want %v", name, got, err, want)
		}
	}
	if _, err := parseState("done"); err == nil {
		t.Fatal("parseState(done) should fail")
	}
}

func TestSelectEntries(t *testing.T) {
	cat, err := tsfile.Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	tests := []struct {
		filter, search, context string
		want                    []int
	}{
		{filter: "all", want: []int{0, 1, 2, 3}},
		{filter: "", want: []int{0, 1, 2, 3}},
		{filter: "untranslated", want: []int{0, 1, 3}},
		{filter: "review", want: []int{1}},
		{filter: "all", search: "open", want: []int{0, 3}},
		{filter: "untranslated", context: "Dialog", want: []int{3}},
		{filter: "all", search: "beenden", want: []int{2}},
	}
	for _, tc := range tests {
		got, err := selectEntries(cat, tc.filter, tc.search, tc.context)
		if err != nil {
			t.Fatalf("selectEntries(%q, %q, %q) error: %v", tc.filter, tc.search, tc.context, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("selectEntries(%q, %q, %q) = %v, want %v", tc.filter, tc.search, tc.context, got, tc.want)
		}
	}

	if _, err := selectEntries(cat, "fuzzy", "", ""); err == nil {
		t.Fatal("selectEntries(fuzzy) should fail")
	}
}

func TestMatchChoice(t *testing.T) {
	ids := []string{"google", "baidu", "deepl", "youdao"}
	for choice, want := range map[string]string{"1": "google", "3": "deepl", "DeepL": "deepl", " youdao ": "youdao"} {
		got, err := matchChoice(strings.TrimSpace(choice), ids)
		if err != nil || got != want {
			t.Fatalf("matchChoice(%q) = %q, %v, want %q", choice, got, err, want)
		}
	}
	for _, choice := range []string{"0", "5", "bing", ""} {
		if _, err := matchChoice(choice, ids); err == nil {
			t.Fatalf("matchChoice(%q) should fail", choice)
		}
	}
}

func TestValidateLanguagePair(t *testing.T) {
	source, target, err := validateLanguagePair("AUTO", "zh_cn")
	if err != nil {
		t.Fatalf("validateLanguagePair() error: %v", err)
	}
	if source != "auto" || target != "zh-CN" {
		t.Fatalf("validateLanguagePair() = %q, %q, want auto, zh-CN", source, target)
	}
	if _, _, err := validateLanguagePair("en", "pt_BR"); err != nil {
		t.Fatalf("validateLanguagePair(en, pt_BR) error: %v", err)
	}
	if _, _, err := validateLanguagePair("de_AT", "fr"); err != nil {
		t.Fatalf("region variant of a known language should be accepted: %v", err)
	}

	for _, pair := range [][2]string{{"en", "auto"}, {"xx", "de"}, {"en", "klingon"}} {
		if _, _, err := validateLanguagePair(pair[0], pair[1]); err == nil {
			t.Fatalf("validateLanguagePair(%q, %q) should fail", pair[0], pair[1])
		}
	}
}

func TestCatalogLanguages(t *testing.T) {
	cat, err := tsfile.Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	source, target := catalogLanguages(cat, provider.Config{SourceLang: "auto", TargetLang: "zh-CN"}, false)
	if source != "en" || target != "de-DE" {
		t.Fatalf("catalogLanguages() = %q, %q, want en, de-DE", source, target)
	}

	source, target = catalogLanguages(cat, provider.Config{SourceLang: "ja", TargetLang: "fr"}, true)
	if source != "ja" || target != "fr" {
		t.Fatalf("catalogLanguages(fixed) = %q, %q, want ja, fr", source, target)
	}

	bare := tsfile.New("2.1", "", "")
	source, target = catalogLanguages(bare, provider.Config{SourceLang: "auto", TargetLang: "ko"}, false)
	if source != "auto" || target != "ko" {
		t.Fatalf("catalogLanguages(bare) = %q, %q, want auto, ko", source, target)
	}
}

func TestListCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir)

	out, err := runCLI(t, "--root", dir, "list", path, "--filter", "untranslated", "--context", "MainWindow")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	want := []string{
		"0\tunfinished\tMainWindow\tOpen => ",
		"1\tunfinished\tMainWindow\tSave => Speichern",
	}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("list output = %q, want %q", lines, want)
	}
}

func TestSetCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir)

	if _, err := runCLI(t, "--root", dir, "set", path, "--context", "Dialog", "--source", "Open", "--translation", "Öffnen", "--state", "finished"); err != nil {
		t.Fatalf("set error: %v", err)
	}
	if _, err := runCLI(t, "--root", dir, "set", path, "--index", "1", "--state", "finished"); err != nil {
		t.Fatalf("set --index error: %v", err)
	}

	cat, err := tsfile.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}
	if e := cat.Find("Dialog", "Open"); e.Translation != "Öffnen" || e.State != tsfile.Finished {
		t.Fatalf("Dialog/Open = %q (%v), want Öffnen (finished)", e.Translation, e.State)
	}
	if e := cat.Find("MainWindow", "Open"); e.Translation != "" || e.State != tsfile.Unfinished {
		t.Fatalf("MainWindow/Open changed: %q (%v)", e.Translation, e.State)
	}
	if e := cat.EntryAt(1); e.State != tsfile.Finished {
		t.Fatalf("entry 1 state = %v, want finished", e.State)
	}
}

func TestSetCommandErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir)

	tests := [][]string{
		{"set", path, "--source", "Open"},
		{"set", path, "--source", "Missing", "--translation", "x"},
		{"set", path, "--index", "9", "--translation", "x"},
		{"set", path, "--source", "Open", "--state", "done"},
		{"set", filepath.Join(dir, "missing.ts"), "--source", "Open", "--translation", "x"},
	}
	for _, args := range tests {
		if _, err := runCLI(t, append([]string{"--root", dir}, args...)...); err == nil {
			t.Fatalf("%v should fail", args)
		}
	}
}

func TestUseAndLangCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("TSKIT_ENV_FILE", "")
	exec := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append([]string{"--root", dir}, args...))
		err := cmd.Execute()
		return out.String(), err
	}

	if _, err := exec("use", "DeepL"); err != nil {
		t.Fatalf("use error: %v", err)
	}
	if got := settings.Load().ActiveProvider(); got != provider.DeepL {
		t.Fatalf("stored provider = %q, want deepl", got)
	}
	if _, err := exec("use", "bing"); err == nil {
		t.Fatal("use bing should fail")
	}

	if _, err := exec("lang", "en", "ja"); err != nil {
		t.Fatalf("lang error: %v", err)
	}
	ps := settings.Load().ProviderConfig(provider.DeepL)
	if ps.SourceLang != "en" || ps.TargetLang != "ja" {
		t.Fatalf("deepl languages = %q -> %q, want en -> ja", ps.SourceLang, ps.TargetLang)
	}

	out, err := exec("lang")
	if err != nil {
		t.Fatalf("lang (show) error: %v", err)
	}
	if !strings.HasPrefix(out, "DeepL: en -> ja") {
		t.Fatalf("lang output = %q", out)
	}

	out, err = exec("providers")
	if err != nil {
		t.Fatalf("providers error: %v", err)
	}
	if !strings.Contains(out, "* deepl") || !strings.Contains(out, "native") {
		t.Fatalf("providers output = %q", out)
	}
}

func TestProjectFileSelectsProvider(t *testing.T) {
	dir := t.TempDir()
	project := "provider: youdao\nsource_lang: en\ntarget_lang: ko\n"
	if err := os.WriteFile(filepath.Join(dir, ".tskit.yaml"), []byte(project), 0644); err != nil {
		t.Fatalf("os.WriteFile() error: %v", err)
	}

	out, err := runCLI(t, "--root", dir, "lang")
	if err != nil {
		t.Fatalf("lang error: %v", err)
	}
	if !strings.HasPrefix(out, "Youdao Translate: en -> ko") {
		t.Fatalf("lang output = %q", out)
	}

	out, err = runCLI(t, "--root", dir, "--provider", "baidu", "lang")
	if err != nil {
		t.Fatalf("lang --provider error: %v", err)
	}
	if !strings.HasPrefix(out, "Baidu Translate: en -> ko") {
		t.Fatalf("flag should win over the project file: %q", out)
	}
}

func TestAuthLoginValidatesSignedCredentials(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	client, err := translate.New(translate.Options{})
	if err != nil {
		t.Fatalf("translate.New() error: %v", err)
	}
	defer client.Close()
	scanner := func(input string) *bufio.Scanner {
		return bufio.NewScanner(strings.NewReader(input))
	}

	if err := authLogin(scanner("no-separator\n"), client, provider.Baidu); err == nil {
		t.Fatal("baidu credential without separator should be rejected")
	}
	if err := authLogin(scanner("appid:secret\n"), client, provider.Baidu); err != nil {
		t.Fatalf("authLogin(baidu) error: %v", err)
	}
	if got := settings.GetCredential(provider.Baidu); got != "appid:secret" {
		t.Fatalf("stored baidu credential = %q", got)
	}
	// Enter keeps the existing credential.
	if err := authLogin(scanner("\n"), client, provider.Baidu); err != nil {
		t.Fatalf("authLogin(keep) error: %v", err)
	}
	if got := settings.GetCredential(provider.Baidu); got != "appid:secret" {
		t.Fatalf("credential changed to %q", got)
	}
	if err := authLogin(scanner("\n"), client, provider.Google); err == nil {
		t.Fatal("empty credential without an existing one should fail")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	if !strings.HasPrefix(out, "tskit version dev") {
		t.Fatalf("version output = %q", out)
	}
}

func TestTranslateDryRunAndOutputValidation(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir)

	if _, err := runCLI(t, "--root", dir, "translate", "--dry-run"); err != nil {
		t.Fatalf("translate --dry-run error: %v", err)
	}
	if _, err := runCLI(t, "--root", dir, "translate", path, path, "--output", filepath.Join(dir, "out.ts")); err == nil {
		t.Fatal("--output with two catalogs should fail")
	}
	empty := t.TempDir()
	if _, err := runCLI(t, "--root", empty, "translate"); err == nil {
		t.Fatal("translate without catalogs should fail")
	}
}

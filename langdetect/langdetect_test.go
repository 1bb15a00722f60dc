package langdetect

import (
	"testing"

	"github.com/minios-linux/tskit/tsfile"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"The configuration file could not be opened because it is missing.", "en"},
		{"Не удалось открыть файл конфигурации, потому что он отсутствует.", "ru"},
		{"Die Konfigurationsdatei konnte nicht geöffnet werden, weil sie fehlt.", "de"},
		{"无法打开配置文件，因为该文件不存在。请检查路径后重试。", "zh-CN"},
		{"OK", ""},
		{"   ", ""},
		{"12345 67890 !!!", ""},
	}
	for _, tt := range tests {
		if got := Detect(tt.text); got != tt.want {
			t.Fatalf("Detect(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestSourceLanguage(t *testing.T) {
	declared := tsfile.New("2.1", "de_DE", "fr")
	declared.Add(tsfile.Entry{Context: "Main", Source: "Open the selected document in a new window"})
	if got := SourceLanguage(declared); got != "fr" {
		t.Fatalf("SourceLanguage(declared) = %q, want fr", got)
	}

	undeclared := tsfile.New("2.1", "de_DE", "")
	for _, src := range []string{
		"&File",
		"Open the selected document in a new window",
		"Save all changes before closing the application",
		"The file could not be written to disk",
	} {
		undeclared.Add(tsfile.Entry{Context: "Main", Source: src})
	}
	if got := SourceLanguage(undeclared); got != "en" {
		t.Fatalf("SourceLanguage(undeclared) = %q, want en", got)
	}

	if got := DetectCatalog(tsfile.New("2.1", "de_DE", "")); got != "" {
		t.Fatalf("DetectCatalog(empty) = %q, want empty", got)
	}
}

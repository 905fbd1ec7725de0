package manifest

import (
	"errors"
	"testing"
)

const singleApp = `<?xml version='1.0' encoding='UTF-8'?>
<gupdate xmlns='http://www.google.com/update2/response' protocol='2.0'>
  <app appid='aapocclcgogkmnckokdopfmhonfmgoek'>
    <updatecheck codebase='https://example.com/ext.crx' version='1.0.1' />
  </app>
</gupdate>`

const multiApp = `<gupdate protocol='2.0'>
  <app appid='aaaa'><updatecheck codebase='https://example.com/a.crx' version='2.0' /></app>
  <app appid='bbbb'><updatecheck codebase='https://example.com/b.crx' version='3.1.4' /></app>
</gupdate>`

func TestExtractVersion(t *testing.T) {
	got, err := ExtractVersion(singleApp, "")
	if err != nil {
		t.Fatalf("ExtractVersion failed: %v", err)
	}
	if got != "1.0.1" {
		t.Errorf("expected version 1.0.1, got %q", got)
	}

	got, err = ExtractVersion(singleApp, "AAPOCCLCGOGKMNCKOKDOPFMHONFMGOEK")
	if err != nil {
		t.Fatalf("ExtractVersion with appid failed: %v", err)
	}
	if got != "1.0.1" {
		t.Errorf("expected version 1.0.1, got %q", got)
	}
}

func TestExtractVersionSelectsApp(t *testing.T) {
	got, err := ExtractVersion(multiApp, "bbbb")
	if err != nil {
		t.Fatalf("ExtractVersion failed: %v", err)
	}
	if got != "3.1.4" {
		t.Errorf("expected version 3.1.4, got %q", got)
	}

	if _, err := ExtractVersion(multiApp, "cccc"); !errors.Is(err, ErrManifestFieldMissing) {
		t.Errorf("expected ErrManifestFieldMissing for unknown appid, got %v", err)
	}
}

func TestExtractVersionAnonymousApp(t *testing.T) {
	payload := `<gupdate><app><updatecheck version='4.5'/></app></gupdate>`
	got, err := ExtractVersion(payload, "whatever")
	if err != nil {
		t.Fatalf("ExtractVersion failed: %v", err)
	}
	if got != "4.5" {
		t.Errorf("expected version 4.5, got %q", got)
	}
}

func TestExtractVersionErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"empty", "", ErrManifestParse},
		{"not xml", "version=1.0", ErrManifestParse},
		{"unclosed", "<gupdate><app>", ErrManifestParse},
		{"wrong root", "<response><app/></response>", ErrManifestParse},
		{"trailing garbage", "<gupdate><app appid='a'><updatecheck version='2.0'/></app></gupdate><<<not xml", ErrManifestParse},
		{"second root", "<gupdate><app><updatecheck version='2.0'/></app></gupdate><gupdate/>", ErrManifestParse},
		{"trailing text", "<gupdate><app><updatecheck version='2.0'/></app></gupdate>tail", ErrManifestParse},
		{"no app", "<gupdate protocol='2.0'></gupdate>", ErrManifestFieldMissing},
		{"no updatecheck", "<gupdate><app appid='x'/></gupdate>", ErrManifestFieldMissing},
		{"noupdate status", "<gupdate><app><updatecheck status='noupdate'/></app></gupdate>", ErrManifestFieldMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractVersion(tt.payload, "")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestExtractVersionAllowsTrailingMarkup(t *testing.T) {
	payload := "<?xml version='1.0'?>\n<gupdate><app><updatecheck version='2.0'/></app></gupdate>\n<!-- served by test -->\n<?pi done?>\n"
	v, err := ExtractVersion(payload, "")
	if err != nil {
		t.Fatalf("ExtractVersion failed: %v", err)
	}
	if v != "2.0" {
		t.Errorf("expected 2.0, got %s", v)
	}
}

func TestCodebase(t *testing.T) {
	m, err := Parse(multiApp)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if m.Protocol != "2.0" {
		t.Errorf("expected protocol 2.0, got %q", m.Protocol)
	}
	cb, err := m.Codebase("aaaa")
	if err != nil {
		t.Fatalf("Codebase failed: %v", err)
	}
	if cb != "https://example.com/a.crx" {
		t.Errorf("unexpected codebase %q", cb)
	}

	m, err = Parse(`<gupdate><app><updatecheck version='1'/></app></gupdate>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, err := m.Codebase(""); !errors.Is(err, ErrManifestFieldMissing) {
		t.Errorf("expected ErrManifestFieldMissing, got %v", err)
	}
}

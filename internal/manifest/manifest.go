// Package manifest reads gupdate update manifests served by extension
// update endpoints.
package manifest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrManifestParse indicates the payload is not a well-formed gupdate document.
	ErrManifestParse = errors.New("manifest parse error")

	// ErrManifestFieldMissing indicates the gupdate document lacks app/updatecheck/version.
	ErrManifestFieldMissing = errors.New("manifest field missing")
)

// UpdateManifest is the <gupdate> root element.
type UpdateManifest struct {
	XMLName  xml.Name `xml:"gupdate"`
	Protocol string   `xml:"protocol,attr"`
	Apps     []App    `xml:"app"`
}

// App is one <app> entry of a gupdate document.
type App struct {
	AppID       string       `xml:"appid,attr"`
	Status      string       `xml:"status,attr"`
	UpdateCheck *UpdateCheck `xml:"updatecheck"`
}

// UpdateCheck carries the advertised version and download location.
type UpdateCheck struct {
	Codebase string `xml:"codebase,attr"`
	Version  string `xml:"version,attr"`
	Status   string `xml:"status,attr"`
}

// Parse decodes payload as a gupdate document. Only whitespace, comments and
// processing instructions may follow the root element.
func Parse(payload string) (*UpdateManifest, error) {
	var m UpdateManifest
	dec := xml.NewDecoder(strings.NewReader(payload))
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestParse, err)
	}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return &m, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrManifestParse, err)
		}
		switch t := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(bytes.TrimSpace(t)) != 0 {
				return nil, fmt.Errorf("%w: text after root element", ErrManifestParse)
			}
		default:
			return nil, fmt.Errorf("%w: content after root element", ErrManifestParse)
		}
	}
}

// App returns the entry for appID. An empty appID, or a document whose apps
// carry no appid at all, selects the first entry.
func (m *UpdateManifest) App(appID string) (*App, error) {
	if len(m.Apps) == 0 {
		return nil, fmt.Errorf("%w: no app element", ErrManifestFieldMissing)
	}
	if appID == "" {
		return &m.Apps[0], nil
	}
	anonymous := true
	for i := range m.Apps {
		if m.Apps[i].AppID == "" {
			continue
		}
		anonymous = false
		if strings.EqualFold(m.Apps[i].AppID, appID) {
			return &m.Apps[i], nil
		}
	}
	if anonymous {
		return &m.Apps[0], nil
	}
	return nil, fmt.Errorf("%w: no app with appid %q", ErrManifestFieldMissing, appID)
}

// Version returns the advertised version for appID.
func (m *UpdateManifest) Version(appID string) (string, error) {
	app, err := m.App(appID)
	if err != nil {
		return "", err
	}
	if app.UpdateCheck == nil {
		return "", fmt.Errorf("%w: no updatecheck element", ErrManifestFieldMissing)
	}
	if app.UpdateCheck.Version == "" {
		return "", fmt.Errorf("%w: updatecheck has no version (status %q)", ErrManifestFieldMissing, app.UpdateCheck.Status)
	}
	return app.UpdateCheck.Version, nil
}

// Codebase returns the advertised download location for appID.
func (m *UpdateManifest) Codebase(appID string) (string, error) {
	app, err := m.App(appID)
	if err != nil {
		return "", err
	}
	if app.UpdateCheck == nil || app.UpdateCheck.Codebase == "" {
		return "", fmt.Errorf("%w: updatecheck has no codebase", ErrManifestFieldMissing)
	}
	return app.UpdateCheck.Codebase, nil
}

// ExtractVersion parses payload and returns the version advertised for appID.
func ExtractVersion(payload, appID string) (string, error) {
	m, err := Parse(payload)
	if err != nil {
		return "", err
	}
	return m.Version(appID)
}

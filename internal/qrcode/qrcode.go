package qrcode

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"ms-orders/internal/models"
)

// ErrMalformedCredential reports a scanned value that cannot be parsed
// back into a credential payload. It is a business outcome, not a fault.
var ErrMalformedCredential = errors.New("malformed credential")

// CredentialError wraps render and filesystem failures during issuance.
type CredentialError struct {
	Op  string
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential %s: %v", e.Op, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// Payload is the structured record embedded in every scannable code.
type Payload struct {
	OrderID      string `json:"orderId"`
	CustomerName string `json:"customerName"`
	TicketType   string `json:"ticketType"`
	Quantity     int    `json:"quantity"`
	CreatedAt    string `json:"createdAt"`
}

// Codec issues verification credentials as QR images and decodes
// scanned values back into payloads.
type Codec struct {
	dir     string
	baseURL string
}

func NewCodec(dir, baseURL string) *Codec {
	return &Codec{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Codec) Dir() string { return c.dir }

// Issue renders a 300px QR image for the order and returns the embedded
// payload string together with the generated filename. The filename
// carries the order code and issuance time so a reissue never overwrites
// an earlier artifact.
func (c *Codec) Issue(order models.Order) (qrString string, filename string, err error) {
	payload := Payload{
		OrderID:      order.OrderCode,
		CustomerName: order.FullName,
		TicketType:   order.TicketType,
		Quantity:     order.Quantity,
		CreatedAt:    order.CreatedAt.UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", "", &CredentialError{Op: "encode", Err: err}
	}

	qrString = fmt.Sprintf("%s/api/orders/verify?data=%s", c.baseURL, url.QueryEscape(string(data)))

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", "", &CredentialError{Op: "mkdir", Err: err}
	}

	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(time.Now().UTC().Format(time.RFC3339Nano))
	filename = fmt.Sprintf("qr_%s_%s.png", order.OrderCode, stamp)

	if err := qrcode.WriteFile(qrString, qrcode.Medium, 300, filepath.Join(c.dir, filename)); err != nil {
		return "", "", &CredentialError{Op: "render", Err: err}
	}

	return qrString, filename, nil
}

// Decode parses a scanned value into a payload. The value may be the raw
// JSON payload or the full verification URL carrying it as the "data"
// query parameter.
func (c *Codec) Decode(raw string) (Payload, error) {
	data := strings.TrimSpace(raw)
	if u, err := url.Parse(data); err == nil && u.RawQuery != "" {
		if v := u.Query().Get("data"); v != "" {
			data = v
		}
	}

	var p Payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Payload{}, ErrMalformedCredential
	}
	if p.OrderID == "" {
		return Payload{}, ErrMalformedCredential
	}
	return p, nil
}

// Image reads a rendered artifact back by filename.
func (c *Codec) Image(filename string) ([]byte, error) {
	// Filenames come in over HTTP; keep reads inside the artifact dir.
	if filename != filepath.Base(filename) {
		return nil, &CredentialError{Op: "read", Err: fmt.Errorf("invalid filename %q", filename)}
	}
	data, err := os.ReadFile(filepath.Join(c.dir, filename))
	if err != nil {
		return nil, &CredentialError{Op: "read", Err: err}
	}
	return data, nil
}

// Remove deletes a rendered artifact. Missing files are not an error.
func (c *Codec) Remove(filename string) error {
	err := os.Remove(filepath.Join(c.dir, filename))
	if err != nil && !os.IsNotExist(err) {
		return &CredentialError{Op: "remove", Err: err}
	}
	return nil
}

// Artifact describes one rendered credential image on disk.
type Artifact struct {
	Filename  string
	OrderCode string
	ModTime   time.Time
}

// ListArtifacts enumerates rendered credential images in the artifact
// directory. Files that do not follow the qr_<code>_<ts>.png naming are
// ignored.
func (c *Codec) ListArtifacts() ([]Artifact, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &CredentialError{Op: "list", Err: err}
	}

	var artifacts []Artifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		code, ok := OrderCodeFromFilename(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Filename:  entry.Name(),
			OrderCode: code,
			ModTime:   info.ModTime(),
		})
	}
	return artifacts, nil
}

// OrderCodeFromFilename extracts the order code from an artifact
// filename of the form qr_<code>_<timestamp>.png.
func OrderCodeFromFilename(name string) (string, bool) {
	if !strings.HasPrefix(name, "qr_") || !strings.HasSuffix(name, ".png") {
		return "", false
	}
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "qr_"), ".png")
	code, _, found := strings.Cut(trimmed, "_")
	if !found || code == "" {
		return "", false
	}
	return code, true
}

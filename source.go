package rastcat

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// FetchTimeout bounds a single URL fetch.
const FetchTimeout = 15 * time.Second

// urlPattern is the fixed pattern a CLI token must match to be fetched.
var urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

// passthroughExts are already terminal-displayable formats that skip the
// raster pipeline when pass-through is enabled.
var passthroughExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".pdf":  true,
}

// FetchError marks a failed URL fetch. Fetch failures are non-fatal: the
// driver reports them and moves on to the next input.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Input is a resolved CLI token: either raw pass-through bytes or an open
// raster handle.
type Input struct {
	Name   string
	Raw    []byte
	Source *RasterSource

	tmpPath string
}

// Close releases the raster handle and any fetch spool file.
func (in *Input) Close() error {
	var err error
	if in.Source != nil {
		err = in.Source.Close()
		in.Source = nil
	}
	if in.tmpPath != "" {
		os.Remove(in.tmpPath)
		in.tmpPath = ""
	}
	return err
}

// Resolver turns CLI tokens into open inputs.
type Resolver struct {
	Client      *http.Client
	PassThrough bool
	ScanURLs    bool
	Stdin       io.Reader
}

// NewResolver returns a resolver with the bounded-timeout HTTP client and
// pass-through enabled.
func NewResolver() *Resolver {
	return &Resolver{
		Client:      &http.Client{Timeout: FetchTimeout},
		PassThrough: true,
		Stdin:       os.Stdin,
	}
}

// Expand turns the positional arguments into the final input list: a lone
// "-" reads remaining inputs from stdin, one per line, and URL-scan mode
// extracts every embedded URL from each line instead of using it verbatim.
func (r *Resolver) Expand(args []string) ([]string, error) {
	var tokens []string
	for _, arg := range args {
		if arg != "-" {
			tokens = append(tokens, r.expandToken(arg)...)
			continue
		}
		scanner := bufio.NewScanner(r.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			tokens = append(tokens, r.expandToken(line)...)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read input list: %w", err)
		}
	}
	return tokens, nil
}

func (r *Resolver) expandToken(token string) []string {
	if !r.ScanURLs {
		return []string{token}
	}
	return urlPattern.FindAllString(token, -1)
}

// IsURL reports whether the token matches the URL pattern in full.
func IsURL(token string) bool {
	m := urlPattern.FindString(token)
	return m == token && m != ""
}

// isPassthrough reports whether the token's extension is on the
// pass-through whitelist.
func (r *Resolver) isPassthrough(token string) bool {
	if !r.PassThrough {
		return false
	}
	ext := strings.ToLower(filepath.Ext(token))
	if IsURL(token) {
		if u, err := url.Parse(token); err == nil {
			ext = strings.ToLower(path.Ext(u.Path))
		}
	}
	return passthroughExts[ext]
}

// Resolve opens a single token. Raster-open failures are returned as
// ordinary (fatal) errors; fetch failures come back as *FetchError.
func (r *Resolver) Resolve(token string) (*Input, error) {
	switch {
	case r.isPassthrough(token):
		raw, err := r.readRaw(token)
		if err != nil {
			return nil, err
		}
		return &Input{Name: token, Raw: raw}, nil

	case IsURL(token):
		tmp, err := r.fetchToSpool(token)
		if err != nil {
			return nil, err
		}
		src, err := Open(tmp)
		if err != nil {
			os.Remove(tmp)
			return nil, err
		}
		src.name = token
		return &Input{Name: token, Source: src, tmpPath: tmp}, nil

	default:
		src, err := Open(token)
		if err != nil {
			return nil, err
		}
		return &Input{Name: token, Source: src}, nil
	}
}

func (r *Resolver) readRaw(token string) ([]byte, error) {
	if IsURL(token) {
		return r.fetch(token)
	}
	raw, err := os.ReadFile(token)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", token, err)
	}
	return raw, nil
}

func (r *Resolver) fetch(rawURL string) ([]byte, error) {
	resp, err := r.Client.Get(rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	return body, nil
}

// fetchToSpool downloads a URL and spools it to a temp file the raster
// library can open. The caller removes the file via Input.Close.
func (r *Resolver) fetchToSpool(rawURL string) (string, error) {
	body, err := r.fetch(rawURL)
	if err != nil {
		return "", err
	}

	ext := ""
	if u, uerr := url.Parse(rawURL); uerr == nil {
		ext = path.Ext(u.Path)
	}
	f, err := os.CreateTemp("", "rastcat-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to spool %s: %w", rawURL, err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to spool %s: %w", rawURL, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to spool %s: %w", rawURL, err)
	}
	return f.Name(), nil
}

// Package credentials turns user, password and combo descriptors into the
// ordered, de-duplicated list of combinations the engine works through.
package credentials

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nimda/routeros-brute/internal/interfaces"
	zlog "github.com/rs/zerolog/log"
)

// DefaultUsername is paired with passwords when no username is given.
const DefaultUsername = "admin"

// Credential is one username/password combination.
type Credential struct {
	Username string `json:"user"`
	Password string `json:"pass"`
}

// String renders "user:pass".
func (c Credential) String() string {
	return c.Username + ":" + c.Password
}

// Source describes where combinations come from. Users and Passwords are
// either literal values or paths to files with one entry per line; a value
// naming an existing regular file is read as a file. An empty field is absent.
type Source struct {
	Users     string
	Passwords string
	ComboFile string
}

// Load resolves the source. Precedence: combo file, users+passwords,
// users only, passwords only, ("admin", "").
func (s Source) Load() ([]Credential, error) {
	var combos []Credential

	switch {
	case s.ComboFile != "":
		if err := interfaces.ValidateFile("combo", s.ComboFile); err != nil {
			return nil, err
		}
		f, err := os.Open(s.ComboFile)
		if err != nil {
			return nil, fmt.Errorf("open combo file: %w", err)
		}
		defer f.Close()
		if combos, err = ParseCombos(f); err != nil {
			return nil, fmt.Errorf("read combo file %s: %w", s.ComboFile, err)
		}

	case s.Users != "" && s.Passwords != "":
		users, err := resolve(s.Users)
		if err != nil {
			return nil, err
		}
		passwords, err := resolve(s.Passwords)
		if err != nil {
			return nil, err
		}
		combos = Cross(users, passwords)

	case s.Users != "":
		users, err := resolve(s.Users)
		if err != nil {
			return nil, err
		}
		combos = Cross(users, []string{""})

	case s.Passwords != "":
		passwords, err := resolve(s.Passwords)
		if err != nil {
			return nil, err
		}
		combos = Cross([]string{DefaultUsername}, passwords)

	default:
		combos = []Credential{{Username: DefaultUsername}}
	}

	deduped := Dedupe(combos)
	zlog.Debug().
		Int("loaded", len(combos)).
		Int("unique", len(deduped)).
		Msg("Credential combinations resolved")
	return deduped, nil
}

// resolve returns the lines of a file, or the literal itself.
func resolve(value string) ([]string, error) {
	if !isFile(value) {
		return []string{value}, nil
	}
	lines, err := ReadLines(value)
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Cross returns every user paired with every password, users outermost.
func Cross(users, passwords []string) []Credential {
	out := make([]Credential, 0, len(users)*len(passwords))
	for _, u := range users {
		for _, p := range passwords {
			out = append(out, Credential{Username: u, Password: p})
		}
	}
	return out
}

// Dedupe drops repeated combinations, keeping first-seen order.
func Dedupe(combos []Credential) []Credential {
	seen := make(map[Credential]struct{}, len(combos))
	out := make([]Credential, 0, len(combos))
	for _, c := range combos {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// ParseCombos reads "user:pass" lines. The split is on the first colon so
// passwords may contain colons; lines without one are skipped.
func ParseCombos(r io.Reader) ([]Credential, error) {
	lines, err := scanLines(r)
	if err != nil {
		return nil, err
	}
	combos := make([]Credential, 0, len(lines))
	for _, line := range lines {
		user, pass, ok := strings.Cut(line, ":")
		if !ok {
			zlog.Trace().Str("line", line).Msg("Skipping combo line without separator")
			continue
		}
		combos = append(combos, Credential{Username: user, Password: pass})
	}
	return combos, nil
}

// ReadLines reads non-empty, trimmed lines from a file.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wordlist: %w", err)
	}
	defer f.Close()

	lines, err := scanLines(f)
	if err != nil {
		return nil, fmt.Errorf("read wordlist %s: %w", path, err)
	}
	return lines, nil
}

func scanLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

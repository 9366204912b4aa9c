// Package discovery locates ansible-vault encrypted files under the
// configured scan roots.
package discovery

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	vmerrors "github.com/homelab-ops/vaultmig/internal/errors"
	"github.com/homelab-ops/vaultmig/internal/logging"
)

// VaultMarker is the ciphertext header ansible-vault writes as the first
// line of every encrypted file.
const VaultMarker = "$ANSIBLE_VAULT;"

// VaultFile represents one discovered encrypted-secrets file.
type VaultFile struct {
	// Path is the file's path as walked (absolute when the root was absolute).
	Path string
	// Service is derived from the filename: the basename with the vault
	// token and extension stripped, kebab-cased. Falls back to the parent
	// directory name for bare vault.yml files (the group_vars convention).
	Service string
}

// Skipped records a file that matched the naming convention but was excluded.
type Skipped struct {
	Path   string
	Reason string
}

// Scanner walks directories for vault files.
type Scanner struct {
	logger   *logging.Logger
	patterns []string
}

// NewScanner creates a scanner matching basenames against the given globs.
func NewScanner(logger *logging.Logger, patterns []string) *Scanner {
	return &Scanner{logger: logger, patterns: patterns}
}

// Discover recursively walks each root and returns vault files in stable,
// sorted-by-path order so repeated dry-runs are diffable. Files matching the
// naming convention but failing the ciphertext-marker check are returned as
// skipped, not errors: plaintext files living alongside real vault files are
// expected. Unreadable directories are logged and walked past. Zero readable
// roots aborts the run.
func (s *Scanner) Discover(roots []string) ([]VaultFile, []Skipped, error) {
	var (
		files         []VaultFile
		skipped       []Skipped
		readableRoots int
	)

	visited := make(map[string]bool)
	for _, root := range roots {
		if _, err := os.ReadDir(root); err != nil {
			s.logger.Warn("Cannot read scan root %s: %v", root, err)
			continue
		}
		readableRoots++
		s.walk(root, visited, &files, &skipped)
	}

	if readableRoots == 0 {
		return nil, nil, vmerrors.Fatal(vmerrors.UserError{
			Message:    "No readable scan roots",
			Details:    fmt.Sprintf("checked: %s", strings.Join(roots, ", ")),
			Suggestion: "Point --ansible-dir at your Ansible repository checkout",
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Path < skipped[j].Path })
	return files, skipped, nil
}

// walk recurses into dir, following directory symlinks but refusing to visit
// any resolved directory twice. Symlink loops degrade to a debug note.
func (s *Scanner) walk(dir string, visited map[string]bool, files *[]VaultFile, skipped *[]Skipped) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		s.logger.Warn("Cannot resolve directory %s: %v", dir, err)
		return
	}
	if visited[resolved] {
		s.logger.Debug("Already visited %s, skipping symlink loop", dir)
		return
	}
	visited[resolved] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("Cannot read directory %s: %v", dir, err)
		return
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			s.walk(path, visited, files, skipped)
			continue
		}
		if entry.Type()&os.ModeSymlink != 0 {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				s.walk(path, visited, files, skipped)
				continue
			}
		}

		if !s.matches(entry.Name()) {
			continue
		}

		hasMarker, err := peekMarker(path)
		if err != nil {
			s.logger.Warn("Cannot read candidate file %s: %v", path, err)
			*skipped = append(*skipped, Skipped{Path: path, Reason: "unreadable"})
			continue
		}
		if !hasMarker {
			s.logger.Debug("Skipping %s: no %s header", path, VaultMarker)
			*skipped = append(*skipped, Skipped{Path: path, Reason: "not vault encrypted"})
			continue
		}

		*files = append(*files, VaultFile{Path: path, Service: InferService(path)})
	}
}

func (s *Scanner) matches(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".template") {
		return false
	}
	for _, pattern := range s.patterns {
		if ok, err := filepath.Match(strings.ToLower(pattern), lower); err == nil && ok {
			return true
		}
	}
	return false
}

// peekMarker reads only the first line of a candidate file. The decrypted
// content is never touched here; ciphertext headers are safe to log.
func peekMarker(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return false, scanner.Err()
	}
	return strings.HasPrefix(scanner.Text(), VaultMarker), nil
}

// InferService derives a kebab-case service name from a vault file path.
// "pihole_vault.yml" and "vault_pihole.yaml" both yield "pihole";
// "group_vars/pihole/vault.yml" yields "pihole" via the parent directory.
func InferService(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	name := stripVaultToken(base)
	if name == "" {
		name = filepath.Base(filepath.Dir(path))
		if name == "." || name == string(filepath.Separator) {
			name = "default"
		}
	}
	return kebabCase(name)
}

func stripVaultToken(base string) string {
	lower := strings.ToLower(base)
	for _, token := range []string{"_vault", "-vault", "vault_", "vault-", "vault"} {
		if idx := strings.Index(lower, token); idx >= 0 {
			return base[:idx] + base[idx+len(token):]
		}
	}
	return base
}

func kebabCase(s string) string {
	var b strings.Builder
	lastHyphen := true // swallow leading separators
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
